package metastore

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	fs := afero.NewOsFs()
	db, err := kishudb.Open(filepath.Join(dir, "kishu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, fs, filepath.Join(dir, "head.json"))
	require.NoError(t, err)
	return s
}

func TestStoreAndGetCommit(t *testing.T) {
	s := newTestStore(t)
	entry := types.CommitEntry{
		CommitID: "c1",
		Message:  "first",
		ActiveVSFingerprint: []types.VersionedName{
			{Names: types.NewNameSet("a"), Version: 1},
		},
	}
	n, err := s.StoreCommit(entry)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	got, err := s.GetCommit("c1")
	require.NoError(t, err)
	require.Equal(t, "first", got.Message)

	state, err := s.GetSessionState("c1")
	require.NoError(t, err)
	require.Equal(t, entry.ActiveVSFingerprint, state)
}

func TestGetCommitMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCommit("nope")
	require.Error(t, err)
	kind, ok := kishuerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, kishuerrors.Storage, kind)
}

func TestUpdateCommitMessage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, firstErr(s.StoreCommit(types.CommitEntry{CommitID: "c1", Message: "orig"})))
	require.NoError(t, s.UpdateCommitMessage("c1", "edited"))

	got, err := s.GetCommit("c1")
	require.NoError(t, err)
	require.Equal(t, "edited", got.Message)
}

func TestKeysLikeAndResolve(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, firstErr(s.StoreCommit(types.CommitEntry{CommitID: "abc123"})))
	require.NoError(t, firstErr(s.StoreCommit(types.CommitEntry{CommitID: "abcdef"})))

	matches, err := s.KeysLike("abc")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	_, err = s.ResolveCommitID("abc")
	require.ErrorIs(t, err, kishuerrors.ErrAmbiguousCommit)

	resolved, err := s.ResolveCommitID("abc123")
	require.NoError(t, err)
	require.Equal(t, types.CommitID("abc123"), resolved)

	_, err = s.ResolveCommitID("zzz")
	require.ErrorIs(t, err, kishuerrors.ErrCommitIDNotFound)
}

func TestBranchLifecycle(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertBranch("main", "c1"))

	branch, err := s.GetBranch("main")
	require.NoError(t, err)
	require.Equal(t, types.CommitID("c1"), branch.CommitID)

	_, err = s.UpdateHead(strPtr("main"), commitPtr("c1"), false)
	require.NoError(t, err)

	err = s.DeleteBranch("main")
	require.ErrorIs(t, err, kishuerrors.ErrBranchConflict)

	require.NoError(t, s.UpsertBranch("feature", "c1"))
	require.NoError(t, s.RenameBranch("feature", "feature2"))
	_, err = s.GetBranch("feature")
	require.ErrorIs(t, err, kishuerrors.ErrBranchNotFound)

	require.Error(t, s.RenameBranch("feature2", "main")) // collision

	require.NoError(t, s.RenameBranch("main", "trunk"))
	head, err := s.GetHead()
	require.NoError(t, err)
	require.Equal(t, "trunk", *head.BranchName)
}

func TestTagLifecycle(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertTag(types.Tag{TagName: "v1", CommitID: "c1", Message: "release"}))

	tag, err := s.GetTag("v1")
	require.NoError(t, err)
	require.Equal(t, types.CommitID("c1"), tag.CommitID)

	require.NoError(t, s.DeleteTag("v1"))

	_, err = s.GetTag("v1")
	require.ErrorIs(t, err, kishuerrors.ErrTagNotFound)

	err = s.DeleteTag("v1")
	require.ErrorIs(t, err, kishuerrors.ErrTagNotFound)
}

func TestRandomBranchNameProducesUnusedName(t *testing.T) {
	s := newTestStore(t)
	name, err := s.RandomBranchName()
	require.NoError(t, err)
	require.NotEmpty(t, name)
}

func firstErr(_ int, err error) error { return err }
func strPtr(s string) *string         { return &s }
func commitPtr(s types.CommitID) *types.CommitID { return &s }
