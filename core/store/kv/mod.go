// Package kv defines the abstraction for a key/value database.
//
// The package also implements three databases behind the same interface: a
// persistent one using bbolt as the engine (https://github.com/etcd-io/bbolt),
// a persistent one using LevelDB (https://github.com/syndtr/goleveldb) and an
// in-memory one based on the LevelDB memory table.
package kv

import (
	"go.dedis.ch/statedb/core/store"
	"golang.org/x/xerrors"
)

// ErrKeyExists is returned by Bucket.Insert when the key is already set.
var ErrKeyExists = xerrors.New("key already exists")

// Bucket is a general interface to operate on a database bucket.
type Bucket interface {
	// Get reads the key from the bucket and returns the value, or nil if the
	// key does not exist.
	Get(key []byte) []byte

	// Set assigns the value to the provided key.
	Set(key, value []byte) error

	// Insert assigns the value to the provided key only if the key does not
	// exist yet. It returns ErrKeyExists otherwise.
	Insert(key, value []byte) error

	// Delete deletes the key from the bucket. Deleting a missing key is not an
	// error.
	Delete(key []byte) error

	// ForEach iterates over all the items in the bucket in a unspecified order.
	// The iteration stops when the callback returns an error.
	ForEach(func(k, v []byte) error) error

	// Scan iterates over every key that matches the prefix in an order
	// determined by the implementation. The iteration stops when the callback
	// returns an error.
	Scan(prefix []byte, fn func(k, v []byte) error) error

	// Len returns the number of keys in the bucket.
	Len() int
}

// ReadableTx allows one to perform read-only atomic operations on the database.
type ReadableTx interface {
	// GetBucket returns the bucket of the given name if it exists, otherwise it
	// returns nil.
	GetBucket(name []byte) Bucket
}

// WritableTx allows one to perform atomic operations on the database.
type WritableTx interface {
	store.Transaction

	ReadableTx

	// GetBucketOrCreate returns the bucket of the given name if it exists, or
	// it creates it.
	GetBucketOrCreate(name []byte) (Bucket, error)
}

// DB is a general interface to operate over a key/value database.
type DB interface {
	// View executes the provided read-only transaction in the context of the
	// database.
	View(fn func(ReadableTx) error) error

	// Update executes the provided writable transaction in the context of the
	// database. Nothing is written if the function returns an error.
	Update(fn func(WritableTx) error) error

	// Close closes the database and free the resources.
	Close() error
}
