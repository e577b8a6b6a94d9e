// Package layout derives Kishu's per-notebook on-disk paths and
// provisions the directories they live in. It is grounded on the
// teacher's refs/heads + HEAD directory conventions, generalized over
// an afero.Fs so tests can run against an in-memory filesystem.
package layout

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Layout derives paths under a root directory for one notebook's
// Kishu session store.
type Layout struct {
	Fs   afero.Fs
	Root string // e.g. ~/.kishu/sessions/<notebook_key>
}

// New creates a Layout rooted at root, using fs for all file
// operations (pass afero.NewOsFs() for real use, afero.NewMemMapFs()
// in tests).
func New(fs afero.Fs, root string) *Layout {
	return &Layout{Fs: fs, Root: root}
}

// DatabasePath is the path to the bbolt file backing MetadataStore
// and VariableStore.
func (l *Layout) DatabasePath() string {
	return filepath.Join(l.Root, "kishu.db")
}

// CommitGraphDir is the directory holding CommitGraph segment files.
func (l *Layout) CommitGraphDir() string {
	return filepath.Join(l.Root, "commit_graph")
}

// HeadPath is the path to the atomically-replaced HEAD file.
func (l *Layout) HeadPath() string {
	return filepath.Join(l.Root, "head.json")
}

// ConnectionPath is the path to the host-discovery connection file.
func (l *Layout) ConnectionPath() string {
	return filepath.Join(l.Root, "connection.json")
}

// EnsureDirs creates the root and commit_graph directories if absent.
func (l *Layout) EnsureDirs() error {
	if err := l.Fs.MkdirAll(l.Root, 0o755); err != nil {
		return err
	}
	return l.Fs.MkdirAll(l.CommitGraphDir(), 0o755)
}

// Exists reports whether this layout's root directory has already
// been initialized (i.e. init has run for this notebook).
func (l *Layout) Exists() bool {
	ok, _ := afero.DirExists(l.Fs, l.Root)
	return ok
}
