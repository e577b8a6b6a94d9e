package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/MRyutaro/kishu-vldb/internal/graph"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface"
	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/layout"
	"github.com/MRyutaro/kishu-vldb/internal/metastore"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
)

// storesRoot resolves the directory all session stores live under:
// --home if given, otherwise $HOME/.kishu.
func storesRoot() (string, error) {
	if homeDir != "" {
		return homeDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", kishuerrors.Wrap(kishuerrors.Connection, "resolve home directory", err)
	}
	return filepath.Join(home, ".kishu"), nil
}

// deriveKey turns a notebook path into its stable notebook_key: the
// first 16 hex characters of the SHA-256 digest of its absolute path,
// so repeated `kishu <cmd> <path>` invocations against the same
// notebook resolve to the same session directory.
func deriveKey(pathOrKey string) string {
	abs, err := filepath.Abs(pathOrKey)
	if err != nil {
		abs = pathOrKey
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

func sessionsRoot(root string) string {
	return filepath.Join(root, "sessions")
}

func sessionDir(root, key string) string {
	return filepath.Join(sessionsRoot(root), key)
}

// readStore is the trio of read-only handles log/status/branch/tag
// need: the commit graph, the metadata store, and the variable store,
// plus a single close for all three's shared database.
type readStore struct {
	db   *bbolt.DB
	meta *metastore.Store
	vars *varstore.Store
	grph *graph.Graph
}

func (r *readStore) Close() error { return r.db.Close() }

// openReadStore opens an existing session's stores without requiring
// a live host: every CLI command that needs no kernel (log, status,
// branch, tag, fegraph, fecommit, and commit -e) goes through this path.
func openReadStore(key string) (*readStore, error) {
	root, err := storesRoot()
	if err != nil {
		return nil, err
	}
	dir := sessionDir(root, key)
	l := layout.New(fs, dir)
	if !l.Exists() {
		return nil, kishuerrors.Wrap(kishuerrors.Notebook, "no kishu session at "+dir, kishuerrors.ErrNotebookNotFound)
	}

	db, err := kishudb.Open(l.DatabasePath())
	if err != nil {
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open database", err)
	}
	meta, err := metastore.Open(db, fs, l.HeadPath())
	if err != nil {
		db.Close()
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open metadata store", err)
	}
	vars, err := varstore.Open(db)
	if err != nil {
		db.Close()
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open variable store", err)
	}
	g, err := graph.Open(fs, l.CommitGraphDir())
	if err != nil {
		db.Close()
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open commit graph", err)
	}
	return &readStore{db: db, meta: meta, vars: vars, grph: g}, nil
}

// readConnection loads a session's connection.json, returning
// ErrNoChannel if the session has never been attached (init not run,
// or detach removed it).
func readConnection(key string) (hostiface.ConnectionInfo, error) {
	root, err := storesRoot()
	if err != nil {
		return hostiface.ConnectionInfo{}, err
	}
	dir := sessionDir(root, key)
	data, err := layout.ReadFile(fs, filepath.Join(dir, "connection.json"))
	if err != nil {
		return hostiface.ConnectionInfo{}, kishuerrors.Wrap(kishuerrors.Connection, "session not attached", kishuerrors.ErrNoChannel)
	}
	var info hostiface.ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return hostiface.ConnectionInfo{}, kishuerrors.Wrap(kishuerrors.Connection, "decode connection info", err)
	}
	return info, nil
}

// dialChannel is the CLI's ChannelDialer: it defers to the kernel
// integration layer's real comm channel, which this module does not
// implement (spec.md §1 scope). channelDialerOverride is the hook for
// wiring a dialer in (for example one returning a fake in-process
// channel); while it is nil, commit and checkout fail with
// ErrChannelStartFailed.
var channelDialerOverride hostiface.ChannelDialer

func dialChannel(ctx context.Context, key string) (hostiface.Channel, error) {
	info, err := readConnection(key)
	if err != nil {
		return nil, err
	}
	dialer := channelDialerOverride
	if dialer == nil {
		return nil, kishuerrors.Wrap(kishuerrors.Connection,
			"no command channel implementation wired for this host", kishuerrors.ErrChannelStartFailed)
	}
	return dialer(ctx, info)
}
