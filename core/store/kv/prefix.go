package kv

import (
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/xerrors"
)

// The engines without native buckets store every bucket in a single key space.
// A bucket is declared by a marker key made of a zero byte followed by the
// name. Its keys are prefixed by the length of the name and the name itself,
// which never starts with a zero byte because names cannot be empty.
const maxBucketName = 255

var markerValue = []byte{1}

// table is the flat key space of an engine.
type table interface {
	get(key []byte) []byte
	iterate(prefix []byte) iterator.Iterator
}

// writableTable is a key space that accepts updates.
type writableTable interface {
	table

	put(key, value []byte) error
	delete(key []byte) error
}

func checkBucketName(name []byte) error {
	if len(name) == 0 {
		return xerrors.New("bucket name required")
	}

	if len(name) > maxBucketName {
		return xerrors.Errorf("bucket name too long: %d > %d", len(name), maxBucketName)
	}

	return nil
}

func bucketMarker(name []byte) []byte {
	return append([]byte{0}, name...)
}

func bucketPrefix(name []byte) []byte {
	return append([]byte{byte(len(name))}, name...)
}

// getBucket returns the bucket if its marker is present, otherwise nil. The
// writer can be nil for read-only transactions.
func getBucket(r table, w writableTable, name []byte) Bucket {
	if checkBucketName(name) != nil || r.get(bucketMarker(name)) == nil {
		return nil
	}

	return prefixBucket{
		prefix: bucketPrefix(name),
		reader: r,
		writer: w,
	}
}

func getBucketOrCreate(w writableTable, name []byte) (Bucket, error) {
	err := checkBucketName(name)
	if err != nil {
		return nil, xerrors.Errorf("failed to create bucket: %v", err)
	}

	marker := bucketMarker(name)

	if w.get(marker) == nil {
		err = w.put(marker, markerValue)
		if err != nil {
			return nil, xerrors.Errorf("failed to create bucket: %v", err)
		}
	}

	bucket := prefixBucket{
		prefix: bucketPrefix(name),
		reader: w,
		writer: w,
	}

	return bucket, nil
}

// prefixBucket is a bucket emulated by prefixing the keys of a flat key space.
//
// - implements kv.Bucket
type prefixBucket struct {
	prefix []byte
	reader table
	writer writableTable
}

func (b prefixBucket) key(key []byte) []byte {
	res := make([]byte, 0, len(b.prefix)+len(key))
	res = append(res, b.prefix...)

	return append(res, key...)
}

// Get implements kv.Bucket. It returns the value of the key, or nil.
func (b prefixBucket) Get(key []byte) []byte {
	return b.reader.get(b.key(key))
}

// Set implements kv.Bucket. It sets the key to the value.
func (b prefixBucket) Set(key, value []byte) error {
	if b.writer == nil {
		return xerrors.New("transaction is read-only")
	}

	return b.writer.put(b.key(key), value)
}

// Insert implements kv.Bucket. It sets the key to the value unless the key
// already exists.
func (b prefixBucket) Insert(key, value []byte) error {
	if b.Get(key) != nil {
		return ErrKeyExists
	}

	return b.Set(key, value)
}

// Delete implements kv.Bucket. It deletes the key if it exists.
func (b prefixBucket) Delete(key []byte) error {
	if b.writer == nil {
		return xerrors.New("transaction is read-only")
	}

	return b.writer.delete(b.key(key))
}

// ForEach implements kv.Bucket. It iterates over the keys in ascending order.
func (b prefixBucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

// Scan implements kv.Bucket. It iterates over the keys matching the prefix in
// ascending order.
func (b prefixBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	iter := b.reader.iterate(b.key(prefix))
	defer iter.Release()

	for iter.Next() {
		err := fn(iter.Key()[len(b.prefix):], iter.Value())
		if err != nil {
			return xerrors.Errorf("callback failed: %v", err)
		}
	}

	err := iter.Error()
	if err != nil {
		return xerrors.Errorf("iterator failed: %v", err)
	}

	return nil
}

// Len implements kv.Bucket. It counts the keys of the bucket.
func (b prefixBucket) Len() int {
	iter := b.reader.iterate(b.prefix)
	defer iter.Release()

	count := 0
	for iter.Next() {
		count++
	}

	return count
}

func prefixRange(prefix []byte) *util.Range {
	return util.BytesPrefix(prefix)
}
