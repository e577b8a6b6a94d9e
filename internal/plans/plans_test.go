package plans

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface/fake"
	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/types"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
)

func newTestVarstore(t *testing.T) *varstore.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := kishudb.Open(filepath.Join(dir, "kishu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := varstore.Open(db)
	require.NoError(t, err)
	return s
}

func TestCheckpointPlanStoresSerializableVariables(t *testing.T) {
	store := newTestVarstore(t)
	vn := types.VersionedName{Names: types.NewNameSet("x"), Version: 1}
	plan := &CheckpointPlan{CommitID: "c1", Actions: []StoreVariable{{VersionedName: vn}}}

	failures, err := plan.Run(ahg.Namespace{"x": 42}, store, DefaultSerializer)
	require.NoError(t, err)
	require.Empty(t, failures)

	blobs, err := store.GetVariableSnapshots([]varstore.SnapshotRequest{{VersionedName: vn}})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
}

func TestRestorePlanLoadsAndMoves(t *testing.T) {
	store := newTestVarstore(t)
	vn := types.VersionedName{Names: types.NewNameSet("x"), Version: 1}
	checkpoint := &CheckpointPlan{CommitID: "c1", Actions: []StoreVariable{{VersionedName: vn}}}
	_, err := checkpoint.Run(ahg.Namespace{"x": 42}, store, DefaultSerializer)
	require.NoError(t, err)

	restore := &RestorePlan{
		TargetCommitID: "c1",
		Actions: []Action{
			LoadVariable{CellNum: 1, VersionedName: vn},
			MoveVariable{Names: types.NewNameSet("y")},
		},
	}
	current := ahg.Namespace{"y": "unchanged"}
	evaluator := fake.NewEvaluator()

	result, fallbacked, err := restore.Run(context.Background(), current, store, evaluator, DefaultSerializer, nil)
	require.NoError(t, err)
	require.Empty(t, fallbacked)
	require.Equal(t, "unchanged", result["y"])
	require.EqualValues(t, 42, result["x"])
}

func TestRestorePlanFallsBackToRerunOnLoadFailure(t *testing.T) {
	store := newTestVarstore(t)
	missing := types.VersionedName{Names: types.NewNameSet("z"), Version: 1}
	evaluator := fake.NewEvaluator()
	evaluator.Register("z = 99", func(ns ahg.Namespace) (ahg.Namespace, error) {
		return ahg.Namespace{"z": 99}, nil
	})

	restore := &RestorePlan{
		TargetCommitID: "c1",
		Actions: []Action{
			LoadVariable{CellNum: 2, VersionedName: missing, FallbackCells: []int{2}},
		},
	}
	cellCode := map[int]string{2: "z = 99"}

	result, fallbacked, err := restore.Run(context.Background(), ahg.Namespace{}, store, evaluator, DefaultSerializer, cellCode)
	require.NoError(t, err)
	require.Len(t, fallbacked, 1)
	require.EqualValues(t, 99, result["z"])
}

func TestRestorePlanRerunsCell(t *testing.T) {
	store := newTestVarstore(t)
	evaluator := fake.NewEvaluator()
	evaluator.Register("w = 7", func(ns ahg.Namespace) (ahg.Namespace, error) {
		return ahg.Namespace{"w": 7}, nil
	})

	restore := &RestorePlan{
		Actions: []Action{RerunCell{CellNum: 1, Code: "w = 7"}},
	}
	result, fallbacked, err := restore.Run(context.Background(), ahg.Namespace{}, store, evaluator, DefaultSerializer, nil)
	require.NoError(t, err)
	require.Empty(t, fallbacked)
	require.EqualValues(t, 7, result["w"])
}
