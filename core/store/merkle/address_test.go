package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{}, tokenize(""))
	require.Equal(t, []string{"ab"}, tokenize("ab"))
	require.Equal(t, []string{"ab", "cd", "ef"}, tokenize("abcdef"))
}

func TestParentAndBranch(t *testing.T) {
	parent, branch := parentAndBranch("")
	require.Equal(t, "", parent)
	require.Equal(t, "", branch)

	parent, branch = parentAndBranch("ab")
	require.Equal(t, "", parent)
	require.Equal(t, "ab", branch)

	parent, branch = parentAndBranch("abcdef")
	require.Equal(t, "abcd", parent)
	require.Equal(t, "ef", branch)
}

func TestValidateAddress(t *testing.T) {
	require.NoError(t, validateAddress(""))
	require.NoError(t, validateAddress("0123456789abcdef"))

	require.ErrorIs(t, validateAddress("abc"), ErrInvalidAddress)
	require.ErrorIs(t, validateAddress("barf"), ErrInvalidAddress)
	require.ErrorIs(t, validateAddress("ABCD"), ErrInvalidAddress)
}
