package branchword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomProducesAdjNoun(t *testing.T) {
	name := Random()
	parts := strings.Split(name, "_")
	require.Len(t, parts, 2)
	require.Contains(t, Adjectives, parts[0])
	require.Contains(t, Nouns, parts[1])
}

func TestWordListSizes(t *testing.T) {
	require.Len(t, Adjectives, 60)
	require.Len(t, Nouns, 60)
}
