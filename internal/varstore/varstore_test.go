package varstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := kishudb.Open(filepath.Join(dir, "kishu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db)
	require.NoError(t, err)
	return s
}

func TestPutAndGetVariableSnapshots(t *testing.T) {
	s := newTestStore(t)
	vn := types.VersionedName{Names: types.NewNameSet("x", "y"), Version: 1}
	require.NoError(t, s.Put("c1", vn, []byte("blob-1")))

	blobs, err := s.GetVariableSnapshots([]SnapshotRequest{{VersionedName: vn, Context: vn.Names}})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("blob-1")}, blobs)
}

func TestGetVariableSnapshotsMissingErrors(t *testing.T) {
	s := newTestStore(t)
	vn := types.VersionedName{Names: types.NewNameSet("z"), Version: 1}
	_, err := s.GetVariableSnapshots([]SnapshotRequest{{VersionedName: vn}})
	require.Error(t, err)
}

func TestPutDeduplicatesContentAcrossCommits(t *testing.T) {
	s := newTestStore(t)
	vn := types.VersionedName{Names: types.NewNameSet("a"), Version: 1}
	require.NoError(t, s.Put("c1", vn, []byte("shared")))
	require.NoError(t, s.Put("c2", vn, []byte("shared")))

	stored, err := s.GetStoredVersionedNames([]types.CommitID{"c1", "c2"})
	require.NoError(t, err)
	require.True(t, stored[vn])
}

func TestGetStoredVersionedNamesScopedToRequestedCommits(t *testing.T) {
	s := newTestStore(t)
	vnA := types.VersionedName{Names: types.NewNameSet("a"), Version: 1}
	vnB := types.VersionedName{Names: types.NewNameSet("b"), Version: 1}
	require.NoError(t, s.Put("c1", vnA, []byte("a-blob")))
	require.NoError(t, s.Put("c2", vnB, []byte("b-blob")))

	stored, err := s.GetStoredVersionedNames([]types.CommitID{"c1"})
	require.NoError(t, err)
	require.True(t, stored[vnA])
	require.False(t, stored[vnB])
}
