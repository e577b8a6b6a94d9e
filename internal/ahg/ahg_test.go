package ahg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

func TestFirstWriteCreatesVersionOneVS(t *testing.T) {
	a := New()
	a.PreCellUpdate(Namespace{})

	changed, err := a.PostCellUpdate(1, "x = 1", 0.01, Namespace{"x": 1}, types.AccessTrace{Writes: []types.Name{"x"}})
	require.NoError(t, err)
	require.Equal(t, []types.Name{"x"}, changed.Added)

	active := a.GetActiveVariableSnapshots()
	require.Len(t, active, 1)
	require.Equal(t, 1, active[0].Version)
	require.Contains(t, active[0].Names, types.Name("x"))
}

func TestModificationBumpsVersion(t *testing.T) {
	a := New()
	a.PreCellUpdate(Namespace{})
	_, err := a.PostCellUpdate(1, "x = 1", 0.01, Namespace{"x": 1}, types.AccessTrace{Writes: []types.Name{"x"}})
	require.NoError(t, err)

	a.PreCellUpdate(Namespace{"x": 1})
	_, err = a.PostCellUpdate(2, "x = 2", 0.01, Namespace{"x": 2}, types.AccessTrace{Reads: []types.Name{"x"}, Writes: []types.Name{"x"}})
	require.NoError(t, err)

	active := a.GetActiveVariableSnapshots()
	require.Len(t, active, 1)
	require.Equal(t, 2, active[0].Version)
}

func TestSharedReferenceMergesComponents(t *testing.T) {
	a := New()
	shared := &struct{ V int }{V: 1}
	a.PreCellUpdate(Namespace{})
	_, err := a.PostCellUpdate(1, "a = b = shared()", 0.01,
		Namespace{"a": shared, "b": shared},
		types.AccessTrace{Writes: []types.Name{"a", "b"}})
	require.NoError(t, err)

	active := a.GetActiveVariableSnapshots()
	require.Len(t, active, 1)
	require.Len(t, active[0].Names, 2)
}

func TestDeletionRemovesNameFromActiveFrontier(t *testing.T) {
	a := New()
	a.PreCellUpdate(Namespace{})
	_, err := a.PostCellUpdate(1, "x = 1", 0.01, Namespace{"x": 1}, types.AccessTrace{Writes: []types.Name{"x"}})
	require.NoError(t, err)

	a.PreCellUpdate(Namespace{"x": 1})
	changed, err := a.PostCellUpdate(2, "del x", 0.01, Namespace{}, types.AccessTrace{Deletes: []types.Name{"x"}})
	require.NoError(t, err)
	require.Equal(t, []types.Name{"x"}, changed.Deleted)
	require.Empty(t, a.GetActiveVariableSnapshots())
}

func TestPostWithoutPreErrors(t *testing.T) {
	a := New()
	_, err := a.PostCellUpdate(1, "x = 1", 0.01, Namespace{"x": 1}, types.AccessTrace{})
	require.Error(t, err)
}

func TestSerializeRoundTripsThroughDeserialize(t *testing.T) {
	a := New()
	a.PreCellUpdate(Namespace{})
	_, err := a.PostCellUpdate(1, "x = 1", 0.01, Namespace{"x": 1}, types.AccessTrace{Writes: []types.Name{"x"}})
	require.NoError(t, err)

	frontier := a.Serialize()
	b := New()
	b.DeserializeActiveVSes(frontier)
	require.Equal(t, frontier, b.Serialize())
}

func TestGetCommonAncestorFrontierRequiresAllThree(t *testing.T) {
	vn := types.VersionedName{Names: types.NewNameSet("x"), Version: 1}
	other := types.VersionedName{Names: types.NewNameSet("y"), Version: 1}

	out := GetCommonAncestorFrontier(
		[]types.VersionedName{vn},
		[]types.VersionedName{vn, other},
		[]types.VersionedName{vn},
	)
	require.Equal(t, []types.VersionedName{vn}, out)
}
