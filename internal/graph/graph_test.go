package graph

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	fs := afero.NewMemMapFs()
	g, err := Open(fs, "/nb/commit_graph")
	require.NoError(t, err)
	return g
}

func TestBasicGraphScenario(t *testing.T) {
	// spec.md §8 scenario 1.
	g := newTestGraph(t)

	require.NoError(t, g.Step("1"))
	require.NoError(t, g.Step("2"))
	require.NoError(t, g.Step("3"))
	require.NoError(t, g.Jump("1"))
	require.NoError(t, g.Step("2'"))

	hist, err := g.ListHistory("")
	require.NoError(t, err)
	require.Equal(t, []Node{
		{CommitID: "2'", ParentID: "1"},
		{CommitID: "1", ParentID: ""},
	}, hist)

	hist3, err := g.ListHistory("3")
	require.NoError(t, err)
	require.Equal(t, []Node{
		{CommitID: "3", ParentID: "2"},
		{CommitID: "2", ParentID: "1"},
		{CommitID: "1", ParentID: ""},
	}, hist3)
}

func TestStepThenParentIsPriorHead(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Jump("x"))
	require.NoError(t, g.Step("y"))

	hist, err := g.ListHistory("y")
	require.NoError(t, err)
	require.Equal(t, types.CommitID("x"), hist[1].CommitID)
}

func TestJumpToUnknownCreatesNewRoot(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Step("1"))
	require.NoError(t, g.Jump("fresh"))

	hist, err := g.ListHistory("fresh")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, types.CommitID("fresh"), hist[0].CommitID)
}

func TestCommonAncestor(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Step("1"))
	require.NoError(t, g.Step("2"))
	require.NoError(t, g.Jump("1"))
	require.NoError(t, g.Step("2b"))

	lca, err := g.GetCommonAncestor("2", "2b")
	require.NoError(t, err)
	require.NotNil(t, lca)
	require.Equal(t, types.CommitID("1"), *lca)
}

func TestCommonAncestorDisjointReturnsNil(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Jump("a1"))
	require.NoError(t, g.Jump("b1")) // unknown -> new root

	lca, err := g.GetCommonAncestor("a1", "b1")
	require.NoError(t, err)
	require.Nil(t, lca)
}

func TestIDTooLongRejected(t *testing.T) {
	g := newTestGraph(t)
	longID := types.CommitID(make([]byte, maxIDBytes+1))
	err := g.Step(longID)
	require.ErrorIs(t, err, ErrIDTooLong)
}

func TestReloadPreservesHistory(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := Open(fs, "/nb/commit_graph")
	require.NoError(t, err)
	require.NoError(t, g.Step("1"))
	require.NoError(t, g.Step("2"))
	require.NoError(t, g.Step("3"))

	before, err := g.ListHistory("3")
	require.NoError(t, err)

	g2, err := Open(fs, "/nb/commit_graph")
	require.NoError(t, err)
	after, err := g2.ListHistory("3")
	require.NoError(t, err)

	require.Equal(t, before, after)
	require.Equal(t, types.CommitID("3"), g2.Head())
}

func TestSpansMultipleSegments(t *testing.T) {
	g := newTestGraph(t)
	for i := 0; i < RecordsPerSegment+5; i++ {
		id := types.CommitID(string(rune('a')) + itoa(i))
		require.NoError(t, g.Step(id))
	}
	hist, err := g.ListHistory("")
	require.NoError(t, err)
	require.Len(t, hist, RecordsPerSegment+5)
}

func TestCorruptTailIsTruncatedOnLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := Open(fs, "/nb/commit_graph")
	require.NoError(t, err)
	require.NoError(t, g.Step("1"))
	require.NoError(t, g.Step("2"))

	path := g.segmentPath(0)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	garbage := append(data, make([]byte, NodeSize/2)...) // a torn, half-written record
	require.NoError(t, afero.WriteFile(fs, path, garbage, 0o644))

	g2, err := Open(fs, "/nb/commit_graph")
	require.NoError(t, err)
	hist, err := g2.ListHistory("2")
	require.NoError(t, err)
	require.Len(t, hist, 2)

	// The graph must still be appendable after truncating the tail.
	require.NoError(t, g2.Step("3"))
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
