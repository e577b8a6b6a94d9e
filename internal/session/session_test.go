package session

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/config"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface/fake"
)

func newTestController(t *testing.T, ns *fake.NamespaceProxy, ev *fake.Evaluator) *Controller {
	t.Helper()
	os.Setenv("KISHU_TEST_MODE", "1")
	t.Cleanup(func() { os.Unsetenv("KISHU_TEST_MODE") })

	dir := t.TempDir()
	c, err := Open(config.Default(), afero.NewOsFs(), dir, "test-session", ns, ev, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPostCellWithoutPreCellFails(t *testing.T) {
	ns := fake.NewNamespaceProxy(nil)
	c := newTestController(t, ns, fake.NewEvaluator())

	_, err := c.PostCell(context.Background(), PostCellParams{CellNum: 1, Code: "x = 1"})
	require.Error(t, err)
}

func TestCommitPipelineCreatesCommitAndBranch(t *testing.T) {
	ns := fake.NewNamespaceProxy(nil)
	c := newTestController(t, ns, fake.NewEvaluator())

	require.NoError(t, c.PreCell())
	ns.Set("x", 1)
	entry, err := c.PostCell(context.Background(), PostCellParams{CellNum: 1, Code: "x = 1"})
	require.NoError(t, err)
	require.NotEmpty(t, entry.CommitID)
	require.Len(t, entry.ActiveVSFingerprint, 1)
	require.NotEmpty(t, entry.CodeVersion)
	require.NotEmpty(t, entry.VarsetVersion)
	require.NotNil(t, entry.RuntimeS)

	stored, err := c.meta.GetCommit(entry.CommitID)
	require.NoError(t, err)
	require.Equal(t, entry.CodeVersion, stored.CodeVersion)
	require.Equal(t, entry.VarsetVersion, stored.VarsetVersion)
	require.NotNil(t, stored.RuntimeS)

	head, err := c.meta.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head.BranchName)
	require.Equal(t, entry.CommitID, *head.CommitID)
}

func TestCheckoutRestoresNamespaceViaMove(t *testing.T) {
	ns := fake.NewNamespaceProxy(nil)
	c := newTestController(t, ns, fake.NewEvaluator())

	require.NoError(t, c.PreCell())
	ns.Set("x", 1)
	first, err := c.PostCell(context.Background(), PostCellParams{CellNum: 1, Code: "x = 1"})
	require.NoError(t, err)

	require.NoError(t, c.PreCell())
	ns.Set("y", 2)
	_, err = c.PostCell(context.Background(), PostCellParams{CellNum: 2, Code: "y = 2"})
	require.NoError(t, err)

	require.NoError(t, c.Checkout(context.Background(), string(first.CommitID), false))

	snap := ns.Snapshot()
	_, hasY := snap["y"]
	require.False(t, hasY)
	require.EqualValues(t, 1, snap["x"])
}

func TestManualCommitWhileNotIdleFails(t *testing.T) {
	ns := fake.NewNamespaceProxy(nil)
	c := newTestController(t, ns, fake.NewEvaluator())
	require.NoError(t, c.PreCell())

	_, err := c.Commit("manual")
	require.Error(t, err)
}

var _ = ahg.Namespace{}
