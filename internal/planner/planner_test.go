package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/config"
	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/metastore"
	"github.com/MRyutaro/kishu-vldb/internal/plans"
	"github.com/MRyutaro/kishu-vldb/internal/types"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
	"github.com/spf13/afero"
)

func newTestPlanner(t *testing.T) (*Planner, *varstore.Store) {
	t.Helper()
	dir := t.TempDir()
	db, err := kishudb.Open(filepath.Join(dir, "kishu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	meta, err := metastore.Open(db, afero.NewOsFs(), filepath.Join(dir, "head.json"))
	require.NoError(t, err)
	vars, err := varstore.Open(db)
	require.NoError(t, err)

	cfg := config.Default().Planner
	return New(cfg, meta, vars), vars
}

func TestBuildCheckpointPlanStoresOnlyUnseenVariables(t *testing.T) {
	p, vars := newTestPlanner(t)

	vnOld := types.VersionedName{Names: types.NewNameSet("a"), Version: 1}
	require.NoError(t, vars.Put("c0", vnOld, []byte("blob")))

	frontier := []types.VariableSnapshot{
		{Names: vnOld.Names, Version: 1},
		{Names: types.NewNameSet("b"), Version: 1},
	}
	plan, err := p.BuildCheckpointPlan("c1", []types.CommitID{"c0"}, frontier)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	require.Equal(t, types.NewNameSet("b"), plan.Actions[0].VersionedName.Names)
}

func TestBuildCheckpointPlanStoresAllWhenIncrementalDisabled(t *testing.T) {
	p, vars := newTestPlanner(t)
	cfg := config.Default().Planner
	cfg.IncrementalStorage = false
	p.cfg = cfg

	vn := types.VersionedName{Names: types.NewNameSet("a"), Version: 1}
	require.NoError(t, vars.Put("c0", vn, []byte("blob")))

	plan, err := p.BuildCheckpointPlan("c1", []types.CommitID{"c0"}, []types.VariableSnapshot{{Names: vn.Names, Version: 1}})
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
}

func TestBuildRestorePlanMovesUnchangedVariable(t *testing.T) {
	p, _ := newTestPlanner(t)
	graph := ahg.New()

	vn := types.VersionedName{Names: types.NewNameSet("x"), Version: 1}
	current := []types.VersionedName{vn}
	target := []types.VersionedName{vn}
	lca := []types.VersionedName{vn}

	plan, err := p.BuildRestorePlan(graph, "c1", target, current, lca)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	_, isMove := plan.Actions[0].(plans.MoveVariable)
	require.True(t, isMove)
}

func TestBuildRestorePlanLoadsWhenNotLive(t *testing.T) {
	p, _ := newTestPlanner(t)
	graph := ahg.New()

	vn := types.VersionedName{Names: types.NewNameSet("x"), Version: 1}
	plan, err := p.BuildRestorePlan(graph, "c1", []types.VersionedName{vn}, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	load, ok := plan.Actions[0].(plans.LoadVariable)
	require.True(t, ok)
	require.Equal(t, vn, load.VersionedName)
}

func TestBuildRestorePlanRerunsWhenCheaperThanLoad(t *testing.T) {
	p, _ := newTestPlanner(t)
	graph := ahg.New()
	graph.PreCellUpdate(ahg.Namespace{})
	_, err := graph.PostCellUpdate(1, "x = 1", 0.0001, ahg.Namespace{"x": 1}, types.AccessTrace{Writes: []types.Name{"x"}})
	require.NoError(t, err)

	frontier := graph.Serialize()
	require.Len(t, frontier, 1)

	plan, err := p.BuildRestorePlan(graph, "c1", frontier, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	_, isRerun := plan.Actions[0].(plans.RerunCell)
	require.True(t, isRerun)
}

// TestBuildRestorePlanLoadsInterveningReadsBeforeRerun covers the
// b=[a]-style chain from spec.md §8 scenario 6: rerunning a cell whose
// code reads an earlier, separately-versioned VS must load that read
// first rather than assume it is already present.
func TestBuildRestorePlanLoadsInterveningReadsBeforeRerun(t *testing.T) {
	p, _ := newTestPlanner(t)
	graph := ahg.New()

	graph.PreCellUpdate(ahg.Namespace{})
	_, err := graph.PostCellUpdate(1, "a = 1", 100.0, ahg.Namespace{"a": 1}, types.AccessTrace{Writes: []types.Name{"a"}})
	require.NoError(t, err)

	graph.PreCellUpdate(ahg.Namespace{"a": 1})
	_, err = graph.PostCellUpdate(2, "z = 2", 100.0, ahg.Namespace{"a": 1, "z": 2}, types.AccessTrace{Writes: []types.Name{"z"}})
	require.NoError(t, err)

	// p, q, and r all alias the same backing slice so the AHG groups
	// them into one three-name component; costOfLoad for that component
	// (3 * baseLoadUnit) then exceeds rerunning cell 3 plus loading its
	// two reads (~2.0001), forcing the rerun branch below.
	shared := []int{1, 2}
	graph.PreCellUpdate(ahg.Namespace{"a": 1, "z": 2})
	_, err = graph.PostCellUpdate(3, "p, q, r = (a, z), (a, z), (a, z)", 0.0001,
		ahg.Namespace{"a": 1, "z": 2, "p": shared, "q": shared, "r": shared},
		types.AccessTrace{Reads: []types.Name{"a", "z"}, Writes: []types.Name{"p", "q", "r"}})
	require.NoError(t, err)

	var targetPQ types.VersionedName
	for _, vn := range graph.Serialize() {
		if len(vn.Names) == 3 {
			targetPQ = vn
		}
	}
	require.NotEmpty(t, targetPQ.Names)

	plan, err := p.BuildRestorePlan(graph, "c1", []types.VersionedName{targetPQ}, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)

	load, ok := plan.Actions[0].(plans.IncrementalLoad)
	require.True(t, ok, "expected the a/z reads to be loaded before rerunning cell 3")
	require.ElementsMatch(t, []types.Name{"a"}, load.VersionedNames[0].Names.Sorted())
	require.ElementsMatch(t, []types.Name{"z"}, load.VersionedNames[1].Names.Sorted())

	rerun, ok := plan.Actions[1].(plans.RerunCell)
	require.True(t, ok)
	require.Equal(t, 3, rerun.CellNum)
}
