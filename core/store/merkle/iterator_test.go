package merkle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/statedb/core/store/kv"
	"go.dedis.ch/statedb/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestLeafIterator_Next(t *testing.T) {
	trie, err := New(kv.NewInMemory(), "")
	require.NoError(t, err)

	iter, err := trie.Leaves("")
	require.NoError(t, err)
	require.False(t, iter.Next())
	require.NoError(t, iter.Err())

	for i, address := range []string{"ab0000", "aba001", "abff02"} {
		root, err := trie.Set(address, []byte(fmt.Sprintf("%04x", i*10)))
		require.NoError(t, err)
		require.NoError(t, trie.SetMerkleRoot(root))
	}

	requireValue(t, trie, "ab0000", "0000")
	requireValue(t, trie, "aba001", "000a")
	requireValue(t, trie, "abff02", "0014")

	iter, err = trie.Leaves("")
	require.NoError(t, err)

	require.True(t, iter.Next())
	require.Equal(t, "ab0000", iter.Address())
	require.Equal(t, []byte("0000"), iter.Value())

	require.True(t, iter.Next())
	require.Equal(t, "aba001", iter.Address())
	require.Equal(t, []byte("000a"), iter.Value())

	require.True(t, iter.Next())
	require.Equal(t, "abff02", iter.Address())
	require.Equal(t, []byte("0014"), iter.Value())

	require.False(t, iter.Next())
	require.NoError(t, iter.Err())

	iter, err = trie.Leaves("abff")
	require.NoError(t, err)

	require.True(t, iter.Next())
	require.Equal(t, "abff02", iter.Address())
	require.Equal(t, []byte("0014"), iter.Value())
	require.False(t, iter.Next())

	_, err = trie.Leaves("cd")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = trie.Leaves("a")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestLeafIterator_ValuedBranches(t *testing.T) {
	trie, err := New(kv.NewInMemory(), "")
	require.NoError(t, err)

	root, err := trie.Update(map[string][]byte{
		"":     []byte("root"),
		"ab":   []byte("1"),
		"ab00": []byte("2"),
		"ab01": []byte("3"),
		"ac":   []byte("4"),
	}, nil, false)
	require.NoError(t, err)
	require.NoError(t, trie.SetMerkleRoot(root))

	iter, err := trie.Leaves("")
	require.NoError(t, err)

	var addresses []string
	for iter.Next() {
		addresses = append(addresses, iter.Address())
	}

	require.Equal(t, []string{"", "ab", "ab00", "ab01", "ac"}, addresses)
}

func TestLeafIterator_Stable(t *testing.T) {
	trie, err := New(kv.NewInMemory(), "")
	require.NoError(t, err)

	root, err := trie.Update(map[string][]byte{
		"ab00": []byte("a"),
		"ab01": []byte("b"),
	}, nil, false)
	require.NoError(t, err)
	require.NoError(t, trie.SetMerkleRoot(root))

	iter, err := trie.Leaves("")
	require.NoError(t, err)

	require.True(t, iter.Next())

	next, err := trie.Update(map[string][]byte{"ab02": []byte("c")}, []string{"ab01"}, false)
	require.NoError(t, err)
	require.NoError(t, trie.SetMerkleRoot(next))

	require.True(t, iter.Next())
	require.Equal(t, "ab01", iter.Address())
	require.False(t, iter.Next())
}

func TestLeafIterator_Failure(t *testing.T) {
	db := fake.NewDB()

	trie, err := New(db, "")
	require.NoError(t, err)

	root, err := trie.Set("ab00", []byte("a"))
	require.NoError(t, err)
	require.NoError(t, trie.SetMerkleRoot(root))

	iter, err := trie.Leaves("")
	require.NoError(t, err)

	db.ErrView = fake.GetError()

	require.False(t, iter.Next())
	require.ErrorIs(t, iter.Err(), ErrDatabase)
}

func TestTrie_ForEachLeaf(t *testing.T) {
	trie, err := New(kv.NewInMemory(), "", WithCacheSize(1<<20))
	require.NoError(t, err)

	root, err := trie.Update(map[string][]byte{
		"ab00": []byte("a"),
		"ab01": []byte("b"),
		"cd00": []byte("c"),
	}, nil, false)
	require.NoError(t, err)
	require.NoError(t, trie.SetMerkleRoot(root))

	values := make(map[string]string)
	err = trie.ForEachLeaf("ab", func(address string, value []byte) error {
		values[address] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ab00": "a", "ab01": "b"}, values)

	count := 0
	err = trie.ForEachLeaf("", func(address string, value []byte) error {
		count++
		return xerrors.New("oops")
	})
	require.EqualError(t, err, "oops")
	require.Equal(t, 1, count)

	err = trie.ForEachLeaf("ef", func(string, []byte) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)

	err = trie.ForEachLeaf("e", func(string, []byte) error { return nil })
	require.ErrorIs(t, err, ErrInvalidAddress)

	addresses, err := trie.Addresses("")
	require.NoError(t, err)
	require.Equal(t, []string{"ab00", "ab01", "cd00"}, addresses)

	_, err = trie.Addresses("ef")
	require.ErrorIs(t, err, ErrNotFound)
}
