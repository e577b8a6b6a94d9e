package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameSetKeyIsOrderIndependent(t *testing.T) {
	a := NewNameSet("b", "a", "c")
	b := NewNameSet("c", "b", "a")
	require.Equal(t, a.Key(), b.Key())
	require.Equal(t, a.Hash(), b.Hash())
}

func TestNameSetIntersects(t *testing.T) {
	a := NewNameSet("a", "b")
	b := NewNameSet("b", "c")
	c := NewNameSet("x", "y")

	require.True(t, a.Intersects(b))
	require.False(t, a.Intersects(c))
}

func TestVersionedNameKeyIncludesVersion(t *testing.T) {
	names := NewNameSet("a")
	v1 := VersionedName{Names: names, Version: 1}
	v2 := VersionedName{Names: names, Version: 2}
	require.NotEqual(t, v1.Key(), v2.Key())
}
