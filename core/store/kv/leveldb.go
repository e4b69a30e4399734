package kv

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.dedis.ch/statedb"
	"golang.org/x/xerrors"
)

// levelReader is the common read interface of LevelDB snapshots and
// transactions.
type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// levelDB is an adapter of the KV store using LevelDB. Buckets are emulated by
// key prefixes.
//
// - implements kv.DB
type levelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens a database backed by a LevelDB directory at the given path.
// The directory is created if it does not exist.
func NewLevelDB(path string) (DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	return levelDB{db: db}, nil
}

// View implements kv.DB. It executes the read-only transaction over a snapshot
// of the database.
func (db levelDB) View(fn func(ReadableTx) error) error {
	snap, err := db.db.GetSnapshot()
	if err != nil {
		return xerrors.Errorf("failed to get snapshot: %v", err)
	}

	defer snap.Release()

	return fn(levelTx{table: levelTable{reader: snap}})
}

// Update implements kv.DB. It executes the writable transaction in a LevelDB
// transaction that is discarded if the function fails.
func (db levelDB) Update(fn func(WritableTx) error) error {
	tr, err := db.db.OpenTransaction()
	if err != nil {
		return xerrors.Errorf("failed to open transaction: %v", err)
	}

	tx := &levelTx{
		table: levelTable{reader: tr, writer: tr},
	}

	err = fn(tx)
	if err != nil {
		tr.Discard()
		return err
	}

	err = tr.Commit()
	if err != nil {
		return xerrors.Errorf("failed to commit: %v", err)
	}

	for _, cb := range tx.onCommit {
		cb()
	}

	return nil
}

// Close implements kv.DB. It closes the database.
func (db levelDB) Close() error {
	return db.db.Close()
}

// levelTx is a transaction over a LevelDB snapshot or transaction.
//
// - implements kv.ReadableTx
// - implements kv.WritableTx
type levelTx struct {
	table    levelTable
	onCommit []func()
}

// GetBucket implements kv.ReadableTx.
func (tx levelTx) GetBucket(name []byte) Bucket {
	if tx.table.writer == nil {
		return getBucket(tx.table, nil, name)
	}

	return getBucket(tx.table, tx.table, name)
}

// GetBucketOrCreate implements kv.WritableTx.
func (tx levelTx) GetBucketOrCreate(name []byte) (Bucket, error) {
	return getBucketOrCreate(tx.table, name)
}

// OnCommit implements store.Transaction.
func (tx *levelTx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// levelTable is the flat key space of a LevelDB snapshot or transaction.
//
// - implements kv.writableTable
type levelTable struct {
	reader levelReader
	writer *leveldb.Transaction
}

func (t levelTable) get(key []byte) []byte {
	value, err := t.reader.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}

	if err != nil {
		statedb.Logger.Warn().Err(err).Msg("leveldb read failed")
		return nil
	}

	return value
}

func (t levelTable) iterate(prefix []byte) iterator.Iterator {
	return t.reader.NewIterator(prefixRange(prefix), nil)
}

func (t levelTable) put(key, value []byte) error {
	return t.writer.Put(key, value, nil)
}

func (t levelTable) delete(key []byte) error {
	return t.writer.Delete(key, nil)
}
