package merkle

import (
	"encoding/binary"
	"encoding/hex"

	"go.dedis.ch/statedb/core/store/kv"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

// Successor is a state computed from the root of a change log entry. The
// deletions are the nodes of the root that the successor replaced.
type Successor struct {
	Successor []byte   `cbor:"1,keyasint"`
	Deletions [][]byte `cbor:"2,keyasint"`
}

// ChangeLogEntry is the record of a persisted root. Hashes are stored in their
// raw form.
type ChangeLogEntry struct {
	// Parent is the root the entry was computed from.
	Parent []byte `cbor:"1,keyasint"`
	// Additions are the nodes written by the update that produced the root,
	// including the ones that already existed.
	Additions [][]byte `cbor:"2,keyasint"`
	// Successors are the roots computed from this one.
	Successors []Successor `cbor:"3,keyasint"`
}

// removeSuccessor removes the successor from the entry and returns true if it
// was present.
func (e *ChangeLogEntry) removeSuccessor(root []byte) bool {
	for i, succ := range e.Successors {
		if string(succ.Successor) == string(root) {
			e.Successors = append(e.Successors[:i], e.Successors[i+1:]...)
			return true
		}
	}

	return false
}

// GetChangeLog returns the change log entry of the root, and false if the root
// is not tracked.
func GetChangeLog(db kv.DB, root string) (ChangeLogEntry, bool, error) {
	key, err := decodeHash(root)
	if err != nil {
		return ChangeLogEntry{}, false, err
	}

	var entry ChangeLogEntry
	var found bool

	err = doView(db, func(tx kv.ReadableTx) error {
		entry, found, err = readChangeLog(tx, key)
		return err
	})
	if err != nil {
		return ChangeLogEntry{}, false, err
	}

	return entry, found, nil
}

// RefCount returns the number of extra writes of the node with the given hash.
func RefCount(db kv.DB, hash string) (uint64, error) {
	key, err := decodeHash(hash)
	if err != nil {
		return 0, err
	}

	var count uint64

	err = doView(db, func(tx kv.ReadableTx) error {
		count, err = readRefCount(tx, key)
		return err
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// TrackedRoots returns the sorted hex hashes of the roots that have a change
// log entry.
func TrackedRoots(db kv.DB) ([]string, error) {
	var roots []string

	err := doView(db, func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(changeLogBucket)
		if bucket == nil {
			return nil
		}

		return bucket.Scan(nil, func(k, _ []byte) error {
			roots = append(roots, hex.EncodeToString(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(roots)

	return roots, nil
}

func readChangeLog(tx kv.ReadableTx, root []byte) (ChangeLogEntry, bool, error) {
	bucket := tx.GetBucket(changeLogBucket)
	if bucket == nil {
		return ChangeLogEntry{}, false, nil
	}

	data := bucket.Get(root)
	if data == nil {
		return ChangeLogEntry{}, false, nil
	}

	var entry ChangeLogEntry

	err := decMode.Unmarshal(data, &entry)
	if err != nil {
		return ChangeLogEntry{}, false, xerrors.Errorf("entry %x: %v: %w",
			root, err, ErrInvalidChangeLog)
	}

	return entry, true, nil
}

func writeChangeLog(tx kv.WritableTx, root []byte, entry ChangeLogEntry) error {
	data, err := encMode.Marshal(entry)
	if err != nil {
		return xerrors.Errorf("failed to encode entry: %v", err)
	}

	bucket, err := tx.GetBucketOrCreate(changeLogBucket)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrDatabase)
	}

	err = bucket.Set(root, data)
	if err != nil {
		return xerrors.Errorf("failed to write entry %x: %v: %w", root, err, ErrDatabase)
	}

	return nil
}

func deleteChangeLog(tx kv.WritableTx, root []byte) error {
	bucket, err := tx.GetBucketOrCreate(changeLogBucket)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrDatabase)
	}

	err = bucket.Delete(root)
	if err != nil {
		return xerrors.Errorf("failed to delete entry %x: %v: %w", root, err, ErrDatabase)
	}

	return nil
}

func readRefCount(tx kv.ReadableTx, hash []byte) (uint64, error) {
	bucket := tx.GetBucket(duplicateBucket)
	if bucket == nil {
		return 0, nil
	}

	data := bucket.Get(hash)
	if data == nil {
		return 0, nil
	}

	if len(data) != 8 {
		return 0, xerrors.Errorf("ref count of %x has %d bytes: %w",
			hash, len(data), ErrInvalidChangeLog)
	}

	return binary.LittleEndian.Uint64(data), nil
}

// writeRefCount stores the count, or removes the entry when it reaches zero.
func writeRefCount(tx kv.WritableTx, hash []byte, count uint64) error {
	bucket, err := tx.GetBucketOrCreate(duplicateBucket)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrDatabase)
	}

	if count == 0 {
		err = bucket.Delete(hash)
	} else {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, count)

		err = bucket.Set(hash, data)
	}

	if err != nil {
		return xerrors.Errorf("failed to write ref count of %x: %v: %w", hash, err, ErrDatabase)
	}

	return nil
}

func incrementRefCount(tx kv.WritableTx, hash []byte) (uint64, error) {
	count, err := readRefCount(tx, hash)
	if err != nil {
		return 0, err
	}

	count++

	return count, writeRefCount(tx, hash, count)
}
