package layout

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := New(fs, "/root/nb1")

	require.Equal(t, "/root/nb1/kishu.db", l.DatabasePath())
	require.Equal(t, "/root/nb1/commit_graph", l.CommitGraphDir())
	require.Equal(t, "/root/nb1/head.json", l.HeadPath())
	require.Equal(t, "/root/nb1/connection.json", l.ConnectionPath())

	require.False(t, l.Exists())
	require.NoError(t, l.EnsureDirs())
	require.True(t, l.Exists())
}

func TestWriteAtomicRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := New(fs, "/root/nb1")
	require.NoError(t, l.EnsureDirs())

	require.NoError(t, WriteAtomic(fs, l.HeadPath(), []byte(`{"branch_name":"main"}`)))

	data, err := ReadFile(fs, l.HeadPath())
	require.NoError(t, err)
	require.Equal(t, `{"branch_name":"main"}`, string(data))

	exists, err := afero.Exists(fs, "/root/nb1/.head.json.tmp")
	require.NoError(t, err)
	require.False(t, exists, "temp file must not remain after atomic rename")
}
