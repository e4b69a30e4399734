package crypto

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFactory_New(t *testing.T) {
	factory := NewHashFactory(Sha512Half)
	require.NotNil(t, factory.New())
	require.Equal(t, HalfSize, factory.New().Size())

	factory = NewHashFactory(HashAlgorithm(99))
	require.Panics(t, func() { factory.New() })
}

func TestHalfHash_Sum(t *testing.T) {
	h := NewHashFactory(Sha512Half).New()
	require.Equal(t, HalfSize, h.Size())

	h.Write([]byte("hello"))
	digest := h.Sum(nil)

	full := sha512.Sum512([]byte("hello"))
	require.Len(t, digest, 32)
	require.Equal(t, full[:32], digest)

	// Known prefix of SHA-512("hello").
	require.Equal(t, "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca7",
		hex.EncodeToString(digest))

	require.Equal(t, []byte{1, 2}, h.Sum([]byte{1, 2})[:2])
}
