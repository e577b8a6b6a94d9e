// Package hostiface defines the narrow interfaces Kishu needs from its
// host: the interactive kernel whose namespace it snapshots, and the
// notebook file it annotates. These collaborators are out of scope for
// this module (spec §1) — the real implementations live in the kernel
// integration layer — so only the contracts are defined here, plus an
// in-memory fake under hostiface/fake for tests.
package hostiface

import (
	"context"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// NamespaceProxy wraps a kernel's live variable namespace, tracing
// which names a cell reads, writes, or deletes while it runs.
type NamespaceProxy interface {
	// Snapshot returns the current namespace contents by value
	// reference (not a copy): callers must not mutate returned values.
	Snapshot() ahg.Namespace

	// Trace returns the access trace accumulated since the last Reset.
	Trace() types.AccessTrace

	// Reset clears the accumulated access trace, called at pre_cell.
	Reset()

	// Replace swaps the live namespace for ns, dropping any name not
	// present in ns. Used by checkout to install a restored namespace.
	Replace(ns ahg.Namespace) error
}

// Evaluator executes code against a namespace and returns the
// resulting bindings, used both by the host's normal cell execution
// and by RestorePlan when it reruns a cell to reconstruct a value.
type Evaluator interface {
	Execute(ctx context.Context, code string, ns ahg.Namespace) (ahg.Namespace, error)
}

// NotebookIO reads and writes the notebook file backing a session.
type NotebookIO interface {
	ReadNotebook(ctx context.Context) (raw []byte, formattedCells []types.FormattedCell, err error)
	WriteNotebook(ctx context.Context, raw []byte) error
}

// ConnectionInfo is what install() records for kernel discovery:
// enough to let a CLI running out-of-process find the right session.
type ConnectionInfo struct {
	KernelID    string
	NotebookKey string
	SessionDir  string
}

// SessionDiscovery enumerates the connection info of every live Kishu
// session on the host, backing `kishu list`.
type SessionDiscovery interface {
	IterSessions(ctx context.Context) ([]ConnectionInfo, error)
}

// Channel is the external command channel a CLI process uses to ask
// an already-running kernel to perform a CLI-initiated commit or
// checkout (spec.md §5, §6): the CLI itself holds no live namespace,
// so state-mutating commands are relayed to the host process that
// does. Read-only commands (log, status, branch, tag) bypass this and
// read the session store directly.
type Channel interface {
	Commit(ctx context.Context, message string) (types.CommitEntry, error)
	Checkout(ctx context.Context, ref string, skipNotebook bool) error
	Close() error
}

// ChannelDialer opens a Channel to the kernel described by info. The
// real implementation (establishing a Jupyter comm, or equivalent) is
// part of the out-of-scope kernel integration layer; this module only
// defines the contract the CLI depends on.
type ChannelDialer func(ctx context.Context, info ConnectionInfo) (Channel, error)
