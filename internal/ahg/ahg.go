// Package ahg implements the Application History Graph: the bipartite
// graph of variable snapshots (VS) and cell executions (CE) the
// planner consumes to decide how to checkpoint and restore a session.
//
// The recursive "walk, compare, collect" shape of ConnectedComponents
// and diffNamespace is grounded on the teacher's pkg/tree/diff.go,
// adapted from comparing two prolly-tree snapshots to comparing a
// live Go namespace against its own pre-execution fingerprint.
package ahg

import (
	"fmt"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// Namespace is a live snapshot of a notebook's variables, handed in by
// the host's namespace proxy.
type Namespace map[types.Name]any

// ChangedVariables reports what a cell's execution did to the
// namespace, as returned by PostCellUpdate.
type ChangedVariables struct {
	Added    []types.Name
	Modified []types.Name
	Deleted  []types.Name
}

// AHG is the bipartite graph of variable snapshots and cell
// executions for one session. It is not safe for concurrent use;
// SessionController serializes access to it the same way it
// serializes access to the other per-session stores.
type AHG struct {
	cells []types.CellExecution

	// active maps each live name to the VersionedName of the VS that
	// currently contains it. Every live name appears in exactly one
	// entry.
	active map[types.Name]types.VersionedName

	// vsIndex retains every VS ever created, active or superseded, so
	// get_common_ancestor_frontier and serialization can look up a
	// VersionedName's full record.
	vsIndex map[string]types.VariableSnapshot

	// nameLastVersion is the highest version number any component
	// containing this name has ever reached. Connected components can
	// split and merge across cell executions, so version numbers are
	// tracked per name rather than per component identity: a new
	// component's version is one more than the highest version any of
	// its member names has seen, which keeps "version strictly
	// increasing" true for every name even across a merge or split.
	nameLastVersion map[types.Name]int

	preFingerprint map[types.Name]string
	prepared       bool
}

// New creates an empty AHG.
func New() *AHG {
	return &AHG{
		active:          make(map[types.Name]types.VersionedName),
		vsIndex:         make(map[string]types.VariableSnapshot),
		nameLastVersion: make(map[types.Name]int),
	}
}

// PreCellUpdate captures the pre-execution namespace fingerprint: a
// shallow identity per live name, so PostCellUpdate can tell which
// names were added, modified, or deleted.
func (a *AHG) PreCellUpdate(ns Namespace) {
	fp := make(map[types.Name]string, len(ns))
	for name, v := range ns {
		fp[name] = identityOf(v)
	}
	a.preFingerprint = fp
	a.prepared = true
}

// PostCellUpdate diffs ns against the fingerprint captured by the last
// PreCellUpdate, recomputes connected components touched by the
// write, creates the resulting VS and CE nodes, and returns a summary
// of what changed. It returns an error if called without a matching
// PreCellUpdate.
func (a *AHG) PostCellUpdate(cellNum int, code string, runtimeS float64, ns Namespace, trace types.AccessTrace) (ChangedVariables, error) {
	if !a.prepared {
		return ChangedVariables{}, fmt.Errorf("ahg: post_cell_update called without a matching pre_cell_update")
	}
	pre := a.preFingerprint
	a.preFingerprint = nil
	a.prepared = false

	changed := diffNamespace(pre, ns)

	reads := a.resolveVersionedNames(trace.Reads)

	touched := make(map[types.Name]struct{}, len(changed.Added)+len(changed.Modified))
	for _, n := range changed.Added {
		touched[n] = struct{}{}
	}
	for _, n := range changed.Modified {
		touched[n] = struct{}{}
	}

	for _, name := range changed.Deleted {
		delete(a.active, name)
	}

	if len(touched) == 0 {
		if len(reads) == 0 && len(changed.Deleted) == 0 {
			return changed, nil
		}
		a.cells = append(a.cells, types.CellExecution{CellNum: cellNum, Code: code, Runtime: runtimeS, Reads: reads})
		return changed, nil
	}

	components := connectedComponents(ns, touched)

	var writes []types.VersionedName
	for _, component := range components {
		version := 0
		for name := range component {
			if v := a.nameLastVersion[name]; v > version {
				version = v
			}
		}
		version++

		names := types.NewNameSet(setKeys(component)...)
		vs := types.VariableSnapshot{Names: names, Version: version}
		vn := vs.VersionedName()
		a.vsIndex[vn.Key()] = vs

		for name := range component {
			a.active[name] = vn
			a.nameLastVersion[name] = version
		}
		writes = append(writes, vn)
	}

	a.cells = append(a.cells, types.CellExecution{
		CellNum: cellNum,
		Code:    code,
		Runtime: runtimeS,
		Reads:   reads,
		Writes:  writes,
	})

	return changed, nil
}

// resolveVersionedNames maps read names to the VersionedName currently
// active for each, deduplicating repeats and skipping names with no
// active VS (e.g. a read of a freshly-deleted name).
func (a *AHG) resolveVersionedNames(names []types.Name) []types.VersionedName {
	seen := make(map[string]struct{}, len(names))
	var out []types.VersionedName
	for _, name := range names {
		vn, ok := a.active[name]
		if !ok {
			continue
		}
		if _, dup := seen[vn.Key()]; dup {
			continue
		}
		seen[vn.Key()] = struct{}{}
		out = append(out, vn)
	}
	return out
}

// GetActiveVariableSnapshots returns the current frontier: one VS per
// live connected component.
func (a *AHG) GetActiveVariableSnapshots() []types.VariableSnapshot {
	seen := make(map[string]struct{}, len(a.active))
	var out []types.VariableSnapshot
	for _, vn := range a.active {
		if _, ok := seen[vn.Key()]; ok {
			continue
		}
		seen[vn.Key()] = struct{}{}
		if vs, ok := a.vsIndex[vn.Key()]; ok {
			out = append(out, vs)
		}
	}
	return out
}

// Serialize returns the current frontier as a compact VersionedName
// list, the shape persisted in CommitEntry.ActiveVSFingerprint.
func (a *AHG) Serialize() []types.VersionedName {
	vses := a.GetActiveVariableSnapshots()
	out := make([]types.VersionedName, len(vses))
	for i, vs := range vses {
		out[i] = vs.VersionedName()
	}
	return out
}

// DeserializeActiveVSes replaces the AHG's active frontier with the
// given VersionedNames, used to reconstruct AHG state from a
// CommitEntry after a checkout instead of replaying every prior cell.
func (a *AHG) DeserializeActiveVSes(frontier []types.VersionedName) {
	a.active = make(map[types.Name]types.VersionedName, len(frontier))
	for _, vn := range frontier {
		vs := types.VariableSnapshot{Names: vn.Names, Version: vn.Version}
		a.vsIndex[vn.Key()] = vs
		for name := range vn.Names {
			a.active[name] = vn
			if vn.Version > a.nameLastVersion[name] {
				a.nameLastVersion[name] = vn.Version
			}
		}
	}
}

// GetCommonAncestorFrontier returns the subset of target's frontier
// that is unchanged since lca (also present in lca's frontier) and
// already live in the current namespace (also present in current's
// frontier) — exactly the VSes the planner's cost rule 1 can move
// instead of reloading.
func GetCommonAncestorFrontier(current, target, lca []types.VersionedName) []types.VersionedName {
	lcaKeys := make(map[string]struct{}, len(lca))
	for _, vn := range lca {
		lcaKeys[vn.Key()] = struct{}{}
	}
	currentKeys := make(map[string]struct{}, len(current))
	for _, vn := range current {
		currentKeys[vn.Key()] = struct{}{}
	}

	var out []types.VersionedName
	for _, vn := range target {
		if _, inLCA := lcaKeys[vn.Key()]; !inLCA {
			continue
		}
		if _, inCurrent := currentKeys[vn.Key()]; !inCurrent {
			continue
		}
		out = append(out, vn)
	}
	return out
}

// ProducerCell returns the CellExecution that wrote vn, searching the
// most recently executed cells first. A cold-started AHG rebuilt only
// from a CommitEntry's frontier (via DeserializeActiveVSes) has no
// cell history, so callers must treat a miss as "no rerun available",
// not as an error.
func (a *AHG) ProducerCell(vn types.VersionedName) (types.CellExecution, bool) {
	for i := len(a.cells) - 1; i >= 0; i-- {
		for _, w := range a.cells[i].Writes {
			if w.Key() == vn.Key() {
				return a.cells[i], true
			}
		}
	}
	return types.CellExecution{}, false
}

// CellCode returns a cell_num -> source map covering every cell this
// AHG has recorded, used to resolve RestorePlan fallback-rerun code.
func (a *AHG) CellCode() map[int]string {
	out := make(map[int]string, len(a.cells))
	for _, c := range a.cells {
		out[c.CellNum] = c.Code
	}
	return out
}

// LookupVS returns the full VariableSnapshot record for vn, if known.
func (a *AHG) LookupVS(vn types.VersionedName) (types.VariableSnapshot, bool) {
	vs, ok := a.vsIndex[vn.Key()]
	return vs, ok
}

func setKeys(s map[types.Name]struct{}) []types.Name {
	out := make([]types.Name, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	return out
}
