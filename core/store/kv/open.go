package kv

import "golang.org/x/xerrors"

// Backend is the name of a database engine.
type Backend string

const (
	// BoltBackend stores the data in a single bbolt file.
	BoltBackend Backend = "bolt"
	// LevelBackend stores the data in a LevelDB directory.
	LevelBackend Backend = "leveldb"
	// MemoryBackend keeps the data in memory. The path is ignored.
	MemoryBackend Backend = "memory"
)

// Open opens the database of the given backend at the path. An empty backend
// selects bbolt.
func Open(backend Backend, path string) (DB, error) {
	switch backend {
	case BoltBackend, "":
		return New(path)
	case LevelBackend:
		return NewLevelDB(path)
	case MemoryBackend:
		return NewInMemory(), nil
	default:
		return nil, xerrors.Errorf("unknown backend '%s'", backend)
	}
}
