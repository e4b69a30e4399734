package fake

import (
	"go.dedis.ch/statedb/core/store/kv"
)

// DB is a fake implementation of a key/value database. It forwards the calls
// to a real database unless it is configured to fail.
//
// - implements kv.DB
type DB struct {
	kv.DB

	ErrView   error
	ErrUpdate error
	ErrBucket error
	ErrWrite  error
	ErrDelete error

	// Calls records the names of the buckets written to.
	Calls *Call
}

// NewDB returns a fake database backed by an in-memory one.
func NewDB() *DB {
	return &DB{
		DB:    kv.NewInMemory(),
		Calls: &Call{},
	}
}

// NewBadDB returns a fake database that fails on every call.
func NewBadDB() *DB {
	db := NewDB()
	db.ErrView = fakeErr
	db.ErrUpdate = fakeErr

	return db
}

// View implements kv.DB.
func (db *DB) View(fn func(kv.ReadableTx) error) error {
	if db.ErrView != nil {
		return db.ErrView
	}

	return db.DB.View(func(tx kv.ReadableTx) error {
		return fn(readTx{ReadableTx: tx, db: db})
	})
}

// Update implements kv.DB.
func (db *DB) Update(fn func(kv.WritableTx) error) error {
	if db.ErrUpdate != nil {
		return db.ErrUpdate
	}

	return db.DB.Update(func(tx kv.WritableTx) error {
		return fn(writeTx{WritableTx: tx, db: db})
	})
}

type readTx struct {
	kv.ReadableTx
	db *DB
}

func (tx readTx) GetBucket(name []byte) kv.Bucket {
	bucket := tx.ReadableTx.GetBucket(name)
	if bucket == nil {
		return nil
	}

	return Bucket{Bucket: bucket, name: string(name), db: tx.db}
}

type writeTx struct {
	kv.WritableTx
	db *DB
}

func (tx writeTx) GetBucket(name []byte) kv.Bucket {
	return readTx{ReadableTx: tx.WritableTx, db: tx.db}.GetBucket(name)
}

func (tx writeTx) GetBucketOrCreate(name []byte) (kv.Bucket, error) {
	if tx.db.ErrBucket != nil {
		return nil, tx.db.ErrBucket
	}

	bucket, err := tx.WritableTx.GetBucketOrCreate(name)
	if err != nil {
		return nil, err
	}

	return Bucket{Bucket: bucket, name: string(name), db: tx.db}, nil
}

// Bucket is a fake bucket that can fail on writes.
//
// - implements kv.Bucket
type Bucket struct {
	kv.Bucket
	name string
	db   *DB
}

// Set implements kv.Bucket.
func (b Bucket) Set(key, value []byte) error {
	if b.db.ErrWrite != nil {
		return b.db.ErrWrite
	}

	b.db.Calls.Add(b.name, "set", string(key))

	return b.Bucket.Set(key, value)
}

// Insert implements kv.Bucket.
func (b Bucket) Insert(key, value []byte) error {
	if b.db.ErrWrite != nil {
		return b.db.ErrWrite
	}

	b.db.Calls.Add(b.name, "insert", string(key))

	return b.Bucket.Insert(key, value)
}

// Delete implements kv.Bucket.
func (b Bucket) Delete(key []byte) error {
	if b.db.ErrDelete != nil {
		return b.db.ErrDelete
	}

	b.db.Calls.Add(b.name, "delete", string(key))

	return b.Bucket.Delete(key)
}
