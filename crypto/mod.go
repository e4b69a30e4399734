// Package crypto defines the hash primitives used to address the nodes of the
// state.
package crypto

import "hash"

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}
