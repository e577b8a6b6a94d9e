package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// runCLI executes the root command with args against an isolated
// --home directory, returning stdout.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlagBoundGlobals()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlagBoundGlobals clears every package-level variable a cobra
// flag is bound to. A real invocation is a fresh process per command,
// so this only matters here: repeated in-process Execute() calls
// otherwise see the previous test's flag values leak forward.
func resetFlagBoundGlobals() {
	verbose, homeDir = false, ""
	listAll = false
	logAll, logGraph = false, false
	commitMessage, commitEditRef = "", ""
	checkoutSkipNotebook = false
	branchCreate, branchDelete, branchRename = "", "", ""
	tagMessage, tagDelete, tagList = "", "", false
	statusShowSize = false
}

func TestDeriveKeyIsStableAndDistinguishing(t *testing.T) {
	a := deriveKey("/tmp/one.ipynb")
	b := deriveKey("/tmp/one.ipynb")
	c := deriveKey("/tmp/two.ipynb")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 16)
}

func TestInitCreatesSessionStoreAndConnection(t *testing.T) {
	fs = afero.NewOsFs()
	home := t.TempDir()
	notebook := filepath.Join(t.TempDir(), "nb.ipynb")

	out, err := runCLI(t, home, "init", notebook)
	require.NoError(t, err)
	require.Contains(t, out, "Initialized kishu session")

	key := deriveKey(notebook)
	dir := sessionDir(home, key)
	require.DirExists(t, dir)
	require.FileExists(t, filepath.Join(dir, "connection.json"))
}

func TestBranchAndTagLifecycleAgainstInitializedSession(t *testing.T) {
	fs = afero.NewOsFs()
	home := t.TempDir()
	notebook := filepath.Join(t.TempDir(), "nb.ipynb")

	_, err := runCLI(t, home, "init", notebook)
	require.NoError(t, err)

	// Branch/tag operate on the metadata store directly; seed one
	// commit by hand so there is something to point at, exactly as a
	// real kernel-triggered commit would leave behind.
	seedCommit(t, home, notebook)

	out, err := runCLI(t, home, "branch", notebook)
	require.NoError(t, err)
	require.Contains(t, out, "seed-branch")

	_, err = runCLI(t, home, "branch", notebook, "-c", "experiment")
	require.NoError(t, err)

	out, err = runCLI(t, home, "branch", notebook)
	require.NoError(t, err)
	require.Contains(t, out, "experiment")

	_, err = runCLI(t, home, "branch", notebook, "-m", "experiment", "renamed")
	require.NoError(t, err)

	out, err = runCLI(t, home, "tag", notebook, "-l")
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = runCLI(t, home, "tag", notebook, "v1", "-m", "checkpoint")
	require.NoError(t, err)

	out, err = runCLI(t, home, "tag", notebook, "-l")
	require.NoError(t, err)
	require.Contains(t, out, "v1")
}

func TestDetachRemovesConnectionButKeepsHistory(t *testing.T) {
	fs = afero.NewOsFs()
	home := t.TempDir()
	notebook := filepath.Join(t.TempDir(), "nb.ipynb")

	_, err := runCLI(t, home, "init", notebook)
	require.NoError(t, err)

	_, err = runCLI(t, home, "detach", notebook)
	require.NoError(t, err)

	key := deriveKey(notebook)
	_, err = os.Stat(filepath.Join(sessionDir(home, key), "connection.json"))
	require.True(t, os.IsNotExist(err))

	// Detaching twice fails: there is no connection info left to remove.
	_, err = runCLI(t, home, "detach", notebook)
	require.Error(t, err)
}

// seedCommit writes one commit entry, its graph node, a named branch,
// and HEAD straight into the session's stores (bypassing the CLI's
// channel boundary, which has no real kernel to dial in tests), the
// way a live kernel's commit would leave them.
func seedCommit(t *testing.T, home, notebook string) {
	t.Helper()
	os.Setenv("KISHU_TEST_MODE", "1")
	t.Cleanup(func() { os.Unsetenv("KISHU_TEST_MODE") })

	key := deriveKey(notebook)
	store, err := openReadStore(key)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.meta.UpsertBranch("seed-branch", "seed-commit-1"))
	require.NoError(t, store.grph.Step("seed-commit-1"))
	_, err = store.meta.StoreCommit(commitEntryFixture("seed-commit-1"))
	require.NoError(t, err)
	branchName := "seed-branch"
	commitID := types.CommitID("seed-commit-1")
	_, err = store.meta.UpdateHead(&branchName, &commitID, false)
	require.NoError(t, err)
}

func commitEntryFixture(id string) types.CommitEntry {
	return types.CommitEntry{
		CommitID:            types.CommitID(id),
		Kind:                types.KindManual,
		Message:             "seed commit",
		ActiveVSFingerprint: []types.VersionedName{},
	}
}
