package kv

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"golang.org/x/xerrors"
)

// memoryDB is an in-memory database built on the LevelDB memory table. Writes
// of a transaction are applied in place and reverted from a journal when the
// transaction fails.
//
// - implements kv.DB
type memoryDB struct {
	sync.RWMutex
	table  *memdb.DB
	closed bool
}

// NewInMemory returns a new empty in-memory database.
func NewInMemory() DB {
	return &memoryDB{
		table: memdb.New(comparer.DefaultComparer, 0),
	}
}

// View implements kv.DB. Concurrent views are allowed but they wait for any
// ongoing update.
func (db *memoryDB) View(fn func(ReadableTx) error) error {
	db.RLock()
	defer db.RUnlock()

	if db.closed {
		return xerrors.New("database closed")
	}

	return fn(&memoryTx{table: db.table})
}

// Update implements kv.DB. Only one update at a time is executed.
func (db *memoryDB) Update(fn func(WritableTx) error) error {
	db.Lock()
	defer db.Unlock()

	if db.closed {
		return xerrors.New("database closed")
	}

	tx := &memoryTx{
		table:    db.table,
		writable: true,
	}

	err := fn(tx)
	if err != nil {
		tx.rollback()
		return err
	}

	for _, cb := range tx.onCommit {
		cb()
	}

	return nil
}

// Close implements kv.DB. It releases the memory table.
func (db *memoryDB) Close() error {
	db.Lock()
	defer db.Unlock()

	db.closed = true
	db.table.Reset()

	return nil
}

// undo is the previous state of a key modified by a transaction.
type undo struct {
	key     []byte
	value   []byte
	existed bool
}

// memoryTx is a transaction over the memory table.
//
// - implements kv.ReadableTx
// - implements kv.WritableTx
// - implements kv.writableTable
type memoryTx struct {
	table    *memdb.DB
	writable bool
	journal  []undo
	onCommit []func()
}

// GetBucket implements kv.ReadableTx.
func (tx *memoryTx) GetBucket(name []byte) Bucket {
	if !tx.writable {
		return getBucket(tx, nil, name)
	}

	return getBucket(tx, tx, name)
}

// GetBucketOrCreate implements kv.WritableTx.
func (tx *memoryTx) GetBucketOrCreate(name []byte) (Bucket, error) {
	return getBucketOrCreate(tx, name)
}

// OnCommit implements store.Transaction.
func (tx *memoryTx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

func (tx *memoryTx) get(key []byte) []byte {
	value, err := tx.table.Get(key)
	if err != nil {
		return nil
	}

	// The table reuses its buffer, so the value is copied to outlive the
	// transaction.
	return append([]byte{}, value...)
}

func (tx *memoryTx) iterate(prefix []byte) iterator.Iterator {
	return tx.table.NewIterator(prefixRange(prefix))
}

func (tx *memoryTx) put(key, value []byte) error {
	tx.record(key)

	return tx.table.Put(key, value)
}

func (tx *memoryTx) delete(key []byte) error {
	if !tx.table.Contains(key) {
		return nil
	}

	tx.record(key)

	return tx.table.Delete(key)
}

func (tx *memoryTx) record(key []byte) {
	prev, err := tx.table.Get(key)

	tx.journal = append(tx.journal, undo{
		key:     append([]byte{}, key...),
		value:   append([]byte{}, prev...),
		existed: err == nil,
	})
}

func (tx *memoryTx) rollback() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		entry := tx.journal[i]

		if entry.existed {
			tx.table.Put(entry.key, entry.value)
		} else {
			tx.table.Delete(entry.key)
		}
	}

	tx.journal = nil
}
