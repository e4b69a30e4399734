package crypto

import (
	"crypto/sha512"
	"hash"
)

// HashAlgorithm is the identifier of a hash function.
type HashAlgorithm int

const (
	// Sha512Half is SHA-512 truncated to its first 32 bytes.
	Sha512Half HashAlgorithm = iota
)

// HalfSize is the size in bytes of a SHA-512 half digest.
const HalfSize = sha512.Size / 2

// hashFactory is a hash factory that is using SHA algorithms.
//
// - implements crypto.HashFactory
type hashFactory struct {
	hashType HashAlgorithm
}

// NewHashFactory returns a new instance of the factory.
func NewHashFactory(a HashAlgorithm) HashFactory {
	return hashFactory{a}
}

// New implements crypto.HashFactory. It returns a new Hash instance.
func (f hashFactory) New() hash.Hash {
	switch f.hashType {
	case Sha512Half:
		return halfHash{Hash: sha512.New()}
	default:
		panic("unknown hash type")
	}
}

// halfHash keeps the first half of the digest of a 64 bytes hash function.
type halfHash struct {
	hash.Hash
}

// Sum appends the truncated digest to b.
func (h halfHash) Sum(b []byte) []byte {
	digest := h.Hash.Sum(nil)

	return append(b, digest[:HalfSize]...)
}

// Size returns the size of the truncated digest.
func (h halfHash) Size() int {
	return HalfSize
}
