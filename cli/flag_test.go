package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagSet_String(t *testing.T) {
	fset := make(FlagSet)
	fset["a"] = "something"
	fset["b"] = 20

	require.Equal(t, "something", fset.String("a"))
	require.Equal(t, "", fset.String("b"))
	require.Equal(t, "", fset.String("c"))
}

func TestFlagSet_StringSlice(t *testing.T) {
	fset := make(FlagSet)
	fset["a"] = []interface{}{"1", "2"}
	fset["b"] = 123
	fset["c"] = []string{"3"}
	fset["d"] = []interface{}{"4", 5}

	require.Equal(t, []string{"1", "2"}, fset.StringSlice("a"))
	require.Nil(t, fset.StringSlice("b"))
	require.Equal(t, []string{"3"}, fset.StringSlice("c"))
	require.Equal(t, []string{"4"}, fset.StringSlice("d"))
}

func TestFlagSet_Int(t *testing.T) {
	fset := make(FlagSet)
	fset["a"] = 20
	fset["b"] = "oops"
	fset["c"] = 30.0
	fset["d"] = 30.1

	require.Equal(t, 20, fset.Int("a"))
	require.Equal(t, 0, fset.Int("b"))
	require.Equal(t, 30, fset.Int("c"))
	require.Equal(t, 0, fset.Int("d"))
}

func TestFlagSet_Bool(t *testing.T) {
	fset := make(FlagSet)
	fset["a"] = true
	fset["b"] = "oops"
	fset["c"] = false

	require.True(t, fset.Bool("a"))
	require.False(t, fset.Bool("b"))
	require.False(t, fset.Bool("c"))
}
