// Package store defines the primitives shared by the storage layers of the
// state database.
package store

// Reader is the interface for a read-only view of a state, where values are
// addressed by hexadecimal strings.
type Reader interface {
	// Contains returns true if a node exists at the address.
	Contains(address string) (bool, error)

	// Get returns the value stored at the address.
	Get(address string) ([]byte, error)
}

// Transaction is a generic interface that store implementations can use to
// provide atomicity.
type Transaction interface {
	// OnCommit adds a callback to be executed after the transaction
	// successfully commits.
	OnCommit(func())
}
