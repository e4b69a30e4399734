package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestDB_Buckets(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				a, err := tx.GetBucketOrCreate([]byte("a"))
				require.NoError(t, err)

				ab, err := tx.GetBucketOrCreate([]byte("ab"))
				require.NoError(t, err)

				require.NoError(t, a.Set([]byte("bc"), []byte("A")))
				require.NoError(t, ab.Set([]byte("c"), []byte("AB")))

				return nil
			})
			require.NoError(t, err)

			err = db.View(func(tx ReadableTx) error {
				require.Nil(t, tx.GetBucket([]byte("unknown")))
				require.Nil(t, tx.GetBucket(nil))

				a := tx.GetBucket([]byte("a"))
				require.NotNil(t, a)
				require.Equal(t, []byte("A"), a.Get([]byte("bc")))
				require.Nil(t, a.Get([]byte("c")))
				require.Equal(t, 1, a.Len())

				ab := tx.GetBucket([]byte("ab"))
				require.NotNil(t, ab)
				require.Equal(t, []byte("AB"), ab.Get([]byte("c")))
				require.Equal(t, 1, ab.Len())

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestBucket_Insert(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				b, err := tx.GetBucketOrCreate([]byte("bucket"))
				require.NoError(t, err)

				require.NoError(t, b.Insert([]byte("key"), []byte("first")))

				err = b.Insert([]byte("key"), []byte("second"))
				require.ErrorIs(t, err, ErrKeyExists)
				require.Equal(t, []byte("first"), b.Get([]byte("key")))

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestBucket_Delete(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				b, err := tx.GetBucketOrCreate([]byte("bucket"))
				require.NoError(t, err)

				require.NoError(t, b.Delete([]byte("missing")))

				require.NoError(t, b.Set([]byte("key"), []byte("value")))
				require.NoError(t, b.Delete([]byte("key")))
				require.Nil(t, b.Get([]byte("key")))
				require.Equal(t, 0, b.Len())

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestBucket_ReadOnly(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				_, err := tx.GetBucketOrCreate([]byte("bucket"))
				return err
			})
			require.NoError(t, err)

			err = db.View(func(tx ReadableTx) error {
				b := tx.GetBucket([]byte("bucket"))
				require.NotNil(t, b)

				require.Error(t, b.Set([]byte("key"), []byte("value")))
				require.Error(t, b.Delete([]byte("key")))

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestBucket_Scan(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				b, err := tx.GetBucketOrCreate([]byte("bucket"))
				require.NoError(t, err)

				for _, key := range []string{"b2", "a1", "b1", "c1"} {
					require.NoError(t, b.Set([]byte(key), []byte(key)))
				}

				return nil
			})
			require.NoError(t, err)

			err = db.View(func(tx ReadableTx) error {
				b := tx.GetBucket([]byte("bucket"))

				var keys []string
				err := b.Scan([]byte("b"), func(k, v []byte) error {
					require.Equal(t, k, v)
					keys = append(keys, string(k))
					return nil
				})
				require.NoError(t, err)
				require.Equal(t, []string{"b1", "b2"}, keys)

				keys = nil
				err = b.ForEach(func(k, v []byte) error {
					keys = append(keys, string(k))
					return nil
				})
				require.NoError(t, err)
				require.Equal(t, []string{"a1", "b1", "b2", "c1"}, keys)

				err = b.Scan(nil, func(k, v []byte) error {
					return xerrors.New("oops")
				})
				require.EqualError(t, err, "callback failed: oops")

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDB_UpdateRollback(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(func(tx WritableTx) error {
				b, err := tx.GetBucketOrCreate([]byte("kept"))
				require.NoError(t, err)

				return b.Set([]byte("key"), []byte("before"))
			})
			require.NoError(t, err)

			called := false

			err = db.Update(func(tx WritableTx) error {
				tx.OnCommit(func() { called = true })

				kept := tx.GetBucket([]byte("kept"))
				require.NoError(t, kept.Set([]byte("key"), []byte("after")))
				require.NoError(t, kept.Set([]byte("other"), []byte("value")))

				b, err := tx.GetBucketOrCreate([]byte("dropped"))
				require.NoError(t, err)
				require.NoError(t, b.Set([]byte("key"), []byte("value")))

				return xerrors.New("oops")
			})
			require.EqualError(t, err, "oops")
			require.False(t, called)

			err = db.View(func(tx ReadableTx) error {
				require.Nil(t, tx.GetBucket([]byte("dropped")))

				kept := tx.GetBucket([]byte("kept"))
				require.Equal(t, []byte("before"), kept.Get([]byte("key")))
				require.Nil(t, kept.Get([]byte("other")))

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDB_OnCommit(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			called := 0

			err := db.Update(func(tx WritableTx) error {
				tx.OnCommit(func() { called++ })
				tx.OnCommit(func() { called++ })

				require.Equal(t, 0, called)

				return nil
			})
			require.NoError(t, err)
			require.Equal(t, 2, called)
		})
	}
}

func TestDB_Close(t *testing.T) {
	for name, db := range makeDBs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Close())

			err := db.View(func(tx ReadableTx) error {
				return nil
			})
			require.Error(t, err)
		})
	}
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDBs(t *testing.T) map[string]DB {
	dir := t.TempDir()

	bolt, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)

	dbs := map[string]DB{
		"bolt":    bolt,
		"leveldb": level,
		"memory":  NewInMemory(),
	}

	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})

	return dbs
}
