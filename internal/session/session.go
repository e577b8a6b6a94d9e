// Package session implements SessionController: the state machine that
// orchestrates pre/post-cell hooks, manual commits, and checkouts for
// one notebook session, wiring together the commit graph, metadata
// store, variable store, AHG, and planner.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/config"
	"github.com/MRyutaro/kishu-vldb/internal/graph"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface"
	"github.com/MRyutaro/kishu-vldb/internal/kishudb"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/kishulog"
	"github.com/MRyutaro/kishu-vldb/internal/layout"
	"github.com/MRyutaro/kishu-vldb/internal/metastore"
	"github.com/MRyutaro/kishu-vldb/internal/planner"
	"github.com/MRyutaro/kishu-vldb/internal/plans"
	"github.com/MRyutaro/kishu-vldb/internal/types"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
	"go.etcd.io/bbolt"
)

// State is where a session sits in the pre/post-cell state machine.
type State int

const (
	Idle State = iota
	PreCell
	Executing
	PostCellState
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case PreCell:
		return "PreCell"
	case Executing:
		return "Executing"
	case PostCellState:
		return "PostCell"
	default:
		return "Unknown"
	}
}

// Controller is the per-session orchestrator.
type Controller struct {
	cfg    config.Config
	fs     afero.Fs
	layout *layout.Layout
	db     *bbolt.DB

	graph   *graph.Graph
	meta    *metastore.Store
	vars    *varstore.Store
	history *ahg.AHG
	plan    *planner.Planner

	ns        hostiface.NamespaceProxy
	evaluator hostiface.Evaluator
	notebook  hostiface.NotebookIO

	sessionID string
	counter   int

	state        State
	preStartedAt time.Time
	lastCellNum  int
	log          zerolog.Logger
}

// Open provisions (or reopens) a session rooted at root, wiring a
// fresh Controller against it.
func Open(cfg config.Config, fs afero.Fs, root, sessionID string, ns hostiface.NamespaceProxy, evaluator hostiface.Evaluator, notebook hostiface.NotebookIO) (*Controller, error) {
	l := layout.New(fs, root)
	if err := l.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := kishudb.Open(l.DatabasePath())
	if err != nil {
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open database", err)
	}

	g, err := graph.Open(fs, l.CommitGraphDir())
	if err != nil {
		db.Close()
		return nil, kishuerrors.Wrap(kishuerrors.Storage, "open commit graph", err)
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

	return &Controller{
		cfg:       cfg,
		fs:        fs,
		layout:    l,
		db:        db,
		graph:     g,
		meta:      meta,
		vars:      vars,
		history:   ahg.New(),
		plan:      planner.New(cfg.Planner, meta, vars),
		ns:        ns,
		evaluator: evaluator,
		notebook:  notebook,
		sessionID: sessionID,
		state:     Idle,
		log:       kishulog.Component("session"),
	}, nil
}

// Close releases the session's database handle.
func (c *Controller) Close() error { return c.db.Close() }

// Install records connection info for kernel discovery.
func (c *Controller) Install(kernelID, notebookKey string) error {
	info := hostiface.ConnectionInfo{KernelID: kernelID, NotebookKey: notebookKey, SessionDir: c.layout.Root}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return layout.WriteAtomic(c.fs, c.layout.ConnectionPath(), data)
}

// State reports the controller's current state-machine position.
func (c *Controller) State() State { return c.state }

// PreCell begins a cell execution: it snapshots the pre-execution
// namespace fingerprint and records the start time.
func (c *Controller) PreCell() error {
	if c.state != Idle {
		return kishuerrors.Wrap(kishuerrors.Notebook, fmt.Sprintf("pre_cell called while in state %s", c.state), kishuerrors.ErrPostWithoutPre)
	}
	c.ns.Reset()
	c.history.PreCellUpdate(c.ns.Snapshot())
	c.preStartedAt = time.Now()
	c.state = PreCell
	return nil
}

// PostCellParams carries the outcome of a cell's execution.
type PostCellParams struct {
	CellNum         int
	Code            string
	RawCell         *string
	ExecutionCount  *int
	ErrorBeforeExec *string
	ErrorInExec     *string
	ResultRepr      *string
}

// PostCell ends a cell execution: it diffs the namespace via the AHG,
// runs the checkpoint pipeline, and persists the resulting commit. It
// fails with ErrPostWithoutPre if no matching PreCell preceded it.
func (c *Controller) PostCell(ctx context.Context, p PostCellParams) (types.CommitEntry, error) {
	if c.state != PreCell {
		return types.CommitEntry{}, kishuerrors.Wrap(kishuerrors.Notebook, "post_cell called without a matching pre_cell", kishuerrors.ErrPostWithoutPre)
	}
	c.state = Executing
	c.lastCellNum = p.CellNum

	runtimeS := time.Since(c.preStartedAt).Seconds()
	trace := c.ns.Trace()
	ns := c.ns.Snapshot()

	if _, err := c.history.PostCellUpdate(p.CellNum, p.Code, runtimeS, ns, trace); err != nil {
		c.state = Idle
		return types.CommitEntry{}, err
	}
	c.state = PostCellState

	entry, err := c.commit(ns, types.KindCellTriggered, "", &cellMeta{
		Code:            p.Code,
		RuntimeS:        &runtimeS,
		RawCell:         p.RawCell,
		ExecutionCount:  p.ExecutionCount,
		ErrorBeforeExec: p.ErrorBeforeExec,
		ErrorInExec:     p.ErrorInExec,
		ResultRepr:      p.ResultRepr,
	})
	c.state = Idle
	if err != nil {
		return types.CommitEntry{}, err
	}
	return entry, nil
}

// Commit records a manual commit outside of any cell execution.
func (c *Controller) Commit(message string) (types.CommitEntry, error) {
	if c.state != Idle {
		return types.CommitEntry{}, kishuerrors.Wrap(kishuerrors.Notebook, fmt.Sprintf("commit called while in state %s", c.state), kishuerrors.ErrPostWithoutPre)
	}
	return c.commit(c.ns.Snapshot(), types.KindManual, message, nil)
}

// cellMeta carries the cell-execution metadata PostCell attaches to a
// CommitEntry; nil for a manual Commit, which has no executed cell.
type cellMeta struct {
	Code            string
	RuntimeS        *float64
	RawCell         *string
	ExecutionCount  *int
	ErrorBeforeExec *string
	ErrorInExec     *string
	ResultRepr      *string
}

// commit runs the shared checkpoint pipeline: build and execute a
// CheckpointPlan, persist the CommitEntry, extend the commit graph,
// and advance HEAD/branch. When cell is non-nil its fields are part
// of the durable entry written by StoreCommit, not attached after the
// fact, so status/fegraph reads see them.
func (c *Controller) commit(ns ahg.Namespace, kind types.CommitEntryKind, message string, cell *cellMeta) (types.CommitEntry, error) {
	commitID := c.nextCommitID()
	frontier := c.history.GetActiveVariableSnapshots()

	ancestorIDs, err := c.ancestorCommitIDs()
	if err != nil {
		return types.CommitEntry{}, err
	}

	checkpointPlan, err := c.plan.BuildCheckpointPlan(commitID, ancestorIDs, frontier)
	if err != nil {
		return types.CommitEntry{}, err
	}
	if _, err := checkpointPlan.Run(ns, c.vars, plans.DefaultSerializer); err != nil {
		return types.CommitEntry{}, err
	}

	fingerprint := c.history.Serialize()
	code := ""
	if cell != nil {
		code = cell.Code
	}

	now := float64(time.Now().Unix())
	entry := types.CommitEntry{
		CommitID:            commitID,
		Kind:                kind,
		Timestamp:           now,
		Message:             message,
		ActiveVSFingerprint: fingerprint,
		CodeVersion:         hashHex(code),
		VarsetVersion:       hashHex(varsetKey(fingerprint)),
	}
	if cell != nil {
		entry.RawCell = cell.RawCell
		entry.ExecutionCount = cell.ExecutionCount
		entry.ErrorBeforeExec = cell.ErrorBeforeExec
		entry.ErrorInExec = cell.ErrorInExec
		entry.ResultRepr = cell.ResultRepr
		entry.RuntimeS = cell.RuntimeS
	}

	if _, err := c.meta.StoreCommit(entry); err != nil {
		return types.CommitEntry{}, err
	}
	if err := c.graph.Step(commitID); err != nil {
		return types.CommitEntry{}, err
	}
	if err := c.advanceHead(commitID); err != nil {
		return types.CommitEntry{}, err
	}
	for _, vn := range entry.ActiveVSFingerprint {
		for name := range vn.Names {
			if err := c.meta.RecordVariableVersion(name, commitID); err != nil {
				return types.CommitEntry{}, err
			}
			if err := c.meta.RecordCommitVariableVersion(commitID, name, vn.Version); err != nil {
				return types.CommitEntry{}, err
			}
		}
	}

	c.log.Debug().Str("commit_id", string(commitID)).Int("stored", len(checkpointPlan.Actions)).Msg("committed")
	return entry, nil
}

// advanceHead repoints the currently attached branch (creating one on
// the session's very first commit if none is attached and HEAD is not
// detached) and moves HEAD to commitID.
func (c *Controller) advanceHead(commitID types.CommitID) error {
	head, err := c.meta.GetHead()
	if err != nil {
		return err
	}

	branchName := head.BranchName
	if branchName == nil && !head.Detached {
		name, err := c.meta.RandomBranchName()
		if err != nil {
			return err
		}
		branchName = &name
	}
	if branchName != nil {
		if err := c.meta.UpsertBranch(*branchName, commitID); err != nil {
			return err
		}
	}
	_, err = c.meta.UpdateHead(branchName, &commitID, head.Detached)
	return err
}

// hashHex returns the hex-encoded SHA-256 digest of s, used for the
// CommitEntry.CodeVersion/VarsetVersion cheap-equality fields (spec.md
// §3).
func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// varsetKey canonicalizes a commit's active-VS fingerprint into a
// single ordered string of every live name, independent of which VS
// each name currently belongs to, so VarsetVersion is stable across
// components splitting or merging around the same live name set.
func varsetKey(fingerprint []types.VersionedName) string {
	names := make([]string, 0, len(fingerprint))
	for _, vn := range fingerprint {
		for name := range vn.Names {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "\x00"
		}
		out += n
	}
	return out
}

func (c *Controller) ancestorCommitIDs() ([]types.CommitID, error) {
	head, err := c.meta.GetHead()
	if err != nil {
		return nil, err
	}
	if head.CommitID == nil {
		return nil, nil
	}
	nodes, err := c.graph.ListHistory(*head.CommitID)
	if err != nil {
		return nil, err
	}
	ids := make([]types.CommitID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.CommitID
	}
	return ids, nil
}

func (c *Controller) nextCommitID() types.CommitID {
	if config.IsTestMode() {
		c.counter++
		return types.NewTestCommitID(c.sessionID, c.counter)
	}
	return types.NewCommitID()
}

// Checkout resolves ref to a commit, restores its namespace (moving,
// loading, or rerunning as the planner decides), replaces the live
// namespace, and updates HEAD. If skipNotebook is set and the planner
// config allows it, the resulting state is auto-committed so it is
// not lost without overwriting the notebook file.
func (c *Controller) Checkout(ctx context.Context, ref string, skipNotebook bool) error {
	targetCommitID, attachedBranch, err := c.resolveRef(ref)
	if err != nil {
		return err
	}

	targetEntry, err := c.meta.GetCommit(targetCommitID)
	if err != nil {
		return err
	}

	head, err := c.meta.GetHead()
	if err != nil {
		return err
	}

	var currentFrontier, lcaFrontier []types.VersionedName
	if head.CommitID != nil {
		if cf, err := c.meta.GetSessionState(*head.CommitID); err == nil {
			currentFrontier = cf
		}
		if lcaID, err := c.graph.GetCommonAncestor(*head.CommitID, targetCommitID); err == nil && lcaID != nil {
			if lf, err := c.meta.GetSessionState(*lcaID); err == nil {
				lcaFrontier = lf
			}
		}
	}

	restorePlan, err := c.plan.BuildRestorePlan(c.history, targetCommitID, targetEntry.ActiveVSFingerprint, currentFrontier, lcaFrontier)
	if err != nil {
		return err
	}

	current := c.ns.Snapshot()
	result, fallbacked, err := restorePlan.Run(ctx, current, c.vars, c.evaluator, plans.DefaultSerializer, c.history.CellCode())
	if err != nil {
		return err
	}
	if len(fallbacked) > 0 {
		c.log.Warn().Int("fallbacked_actions", len(fallbacked)).Str("target", string(targetCommitID)).Msg("checkout fell back to rerun")
	}

	if err := c.ns.Replace(result); err != nil {
		return err
	}
	c.history.DeserializeActiveVSes(targetEntry.ActiveVSFingerprint)

	if err := c.graph.Jump(targetCommitID); err != nil {
		return err
	}
	if _, err := c.meta.UpdateHead(attachedBranch, &targetCommitID, attachedBranch == nil); err != nil {
		return err
	}

	if skipNotebook && c.cfg.Planner.AutoCommitOnSkipNotebook {
		if _, err := c.Commit("auto-commit after checkout"); err != nil {
			return err
		}
	}
	return nil
}

// resolveRef resolves ref first as a branch name, then as an
// (abbreviated) commit id, returning the branch name too when ref was
// a branch so Checkout knows to leave HEAD attached.
func (c *Controller) resolveRef(ref string) (types.CommitID, *string, error) {
	if branch, err := c.meta.GetBranch(ref); err == nil {
		name := branch.BranchName
		return branch.CommitID, &name, nil
	}
	commitID, err := c.meta.ResolveCommitID(ref)
	if err != nil {
		return "", nil, err
	}
	return commitID, nil, nil
}
