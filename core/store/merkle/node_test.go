package merkle

import (
	"encoding/hex"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/statedb/crypto"
)

func TestNode_Encode(t *testing.T) {
	node := Node{
		Value:    []byte("hello"),
		Children: map[string]string{"ab": "123"},
	}

	data, err := EncodeNode(node)
	require.NoError(t, err)
	require.Equal(t, "a26163a16261626331323361764568656c6c6f", hex.EncodeToString(data))

	data, err = EncodeNode(Node{})
	require.NoError(t, err)
	// {"c": {}, "v": null}
	require.Equal(t, "a26163a06176f6", hex.EncodeToString(data))
}

func TestNode_Decode(t *testing.T) {
	data, err := hex.DecodeString("a26163a162303063616263617647676f6f64627965")
	require.NoError(t, err)

	node, err := DecodeNode(data)
	require.NoError(t, err)
	require.Equal(t, []byte("goodbye"), node.Value)
	require.Equal(t, map[string]string{"00": "abc"}, node.Children)

	node, err = DecodeNode([]byte{0xa1, 0x61, 0x76, 0xf6})
	require.NoError(t, err)
	require.False(t, node.HasValue())
	require.NotNil(t, node.Children)
	require.Empty(t, node.Children)

	badInputs := map[string][]byte{
		"empty":            {},
		"not a map":        {0x01},
		"missing value":    {0xa1, 0x61, 0x63, 0xa0},
		"value not bytes":  {0xa1, 0x61, 0x76, 0x01},
		"children invalid": {0xa2, 0x61, 0x63, 0x01, 0x61, 0x76, 0xf6},
		"children null":    {0xa2, 0x61, 0x63, 0xf6, 0x61, 0x76, 0xf6},
	}

	for name, input := range badInputs {
		_, err = DecodeNode(input)
		require.ErrorIs(t, err, ErrInvalidRecord, name)
	}
}

func TestNode_RoundTrip(t *testing.T) {
	f := func(value []byte, children map[string]string, hasValue bool) bool {
		node := Node{Children: children}
		if node.Children == nil {
			node.Children = map[string]string{}
		}

		if hasValue {
			node.Value = append([]byte{}, value...)
		}

		data, err := EncodeNode(node)
		require.NoError(t, err)

		decoded, err := DecodeNode(data)
		require.NoError(t, err)

		require.Equal(t, node.HasValue(), decoded.HasValue())
		require.Equal(t, node.Children, decoded.Children)

		if hasValue {
			require.Equal(t, node.Value, decoded.Value)
		}

		return true
	}

	err := quick.Check(f, nil)
	require.NoError(t, err)
}

func TestNode_ContentAddressing(t *testing.T) {
	f := func(tokens []uint8, value []byte) bool {
		forward := NewNode()
		backward := NewNode()

		for _, tok := range tokens {
			forward.Children[hex.EncodeToString([]byte{tok})] = "hash"
		}

		for i := len(tokens) - 1; i >= 0; i-- {
			backward.Children[hex.EncodeToString([]byte{tokens[i]})] = "hash"
		}

		forward.Value = value
		backward.Value = value

		fac := crypto.NewHashFactory(crypto.Sha512Half)

		h1, d1, err := encodeAndHash(fac, forward)
		require.NoError(t, err)

		h2, d2, err := encodeAndHash(fac, backward)
		require.NoError(t, err)

		return h1 == h2 && string(d1) == string(d2)
	}

	err := quick.Check(f, nil)
	require.NoError(t, err)
}

func TestNode_EmptyValue(t *testing.T) {
	data, err := EncodeNode(Node{Value: []byte{}})
	require.NoError(t, err)

	node, err := DecodeNode(data)
	require.NoError(t, err)
	require.True(t, node.HasValue())
	require.Empty(t, node.Value)
}

func TestDecodeHash(t *testing.T) {
	raw, err := decodeHash(
		"0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Len(t, raw, 32)

	_, err = decodeHash("zz")
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = decodeHash("abcd")
	require.ErrorIs(t, err, ErrInvalidHash)
}
