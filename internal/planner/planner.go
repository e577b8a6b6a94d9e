// Package planner turns the AHG's current state into the two
// executable plans defined in package plans: a CheckpointPlan that
// persists the delta of changed variable snapshots, and a RestorePlan
// that reassembles a target namespace by moving, loading, or
// rerunning its way back to it.
//
// There is no teacher or pack donor for this component: it is pure
// domain logic over the data model already grounded elsewhere
// (internal/ahg, internal/varstore, internal/metastore).
package planner

import (
	"sort"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/config"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/metastore"
	"github.com/MRyutaro/kishu-vldb/internal/plans"
	"github.com/MRyutaro/kishu-vldb/internal/types"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
)

// baseLoadUnit is the assumed cost of loading one variable with an
// unknown serialized size, used until a VS has actually been stored
// once and its Size field populated.
const baseLoadUnit = 1.0

// Planner builds CheckpointPlans and RestorePlans.
type Planner struct {
	cfg  config.PlannerConfig
	meta *metastore.Store
	vars *varstore.Store
}

// New creates a Planner bound to one session's metadata and variable
// stores.
func New(cfg config.PlannerConfig, meta *metastore.Store, vars *varstore.Store) *Planner {
	return &Planner{cfg: cfg, meta: meta, vars: vars}
}

// BuildCheckpointPlan returns a plan to persist every VS in frontier
// that is not already stored among ancestors. If incremental storage
// is disabled, every active VS is stored regardless.
func (p *Planner) BuildCheckpointPlan(commitID types.CommitID, ancestors []types.CommitID, frontier []types.VariableSnapshot) (*plans.CheckpointPlan, error) {
	plan := &plans.CheckpointPlan{CommitID: commitID}

	var already map[types.VersionedName]bool
	if p.cfg.IncrementalStorage {
		var err error
		already, err = p.vars.GetStoredVersionedNames(ancestors)
		if err != nil {
			return nil, err
		}
	}

	for _, vs := range frontier {
		vn := vs.VersionedName()
		if already[vn] {
			continue
		}
		plan.Actions = append(plan.Actions, plans.StoreVariable{VersionedName: vn})
	}
	return plan, nil
}

// BuildRestorePlan decides, for every VersionedName in target's
// frontier, whether to move it from the live namespace, load it from
// VariableStore, or rerun the cell(s) that produced it — per the cost
// rule: move if already live and unchanged since the common ancestor,
// else load if cheaper than rerunning, else rerun.
func (p *Planner) BuildRestorePlan(graph *ahg.AHG, targetCommitID types.CommitID, target, current, lca []types.VersionedName) (*plans.RestorePlan, error) {
	plan := &plans.RestorePlan{TargetCommitID: targetCommitID}

	moveCandidates := ahg.GetCommonAncestorFrontier(current, target, lca)
	moveKeys := make(map[string]bool, len(moveCandidates))
	for _, vn := range moveCandidates {
		moveKeys[vn.Key()] = true
	}

	var remaining []types.VersionedName
	for _, vn := range target {
		if moveKeys[vn.Key()] {
			plan.Actions = append(plan.Actions, plans.MoveVariable{Names: vn.Names})
			continue
		}
		remaining = append(remaining, vn)
	}

	memo := make(map[string]rerunEstimate)
	type decision struct {
		vn          types.VersionedName
		useLoad     bool
		cellNum     int
		fallbackLen int
	}
	var decisions []decision

	for _, vn := range remaining {
		loadCost := p.costOfLoad(graph, vn)
		estimate := p.estimateRerun(graph, vn, memo, make(map[string]bool))

		useLoad := estimate.err != nil || loadCost <= estimate.cost
		cellNum := producerCellNum(graph, vn)
		decisions = append(decisions, decision{vn: vn, useLoad: useLoad, cellNum: cellNum, fallbackLen: len(estimate.cells)})
	}

	// Ties (and the ordering of independently-decided actions in
	// general) break deterministically by (fewer fallbacks, lower
	// cell number).
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].fallbackLen != decisions[j].fallbackLen {
			return decisions[i].fallbackLen < decisions[j].fallbackLen
		}
		return decisions[i].cellNum < decisions[j].cellNum
	})

	for _, d := range decisions {
		if d.useLoad {
			est := memo[d.vn.Key()]
			plan.Actions = append(plan.Actions, plans.LoadVariable{
				CellNum:       d.cellNum,
				VersionedName: d.vn,
				FallbackCells: est.cells,
			})
			continue
		}
		est := memo[d.vn.Key()]

		// Reads along the rerun chain that were themselves costed as
		// loads (rather than reruns) must be loaded before the cells
		// that consume them, or the evaluator has nothing to read.
		loadVNs := sortedLoads(est.loads)
		switch len(loadVNs) {
		case 0:
		case 1:
			plan.Actions = append(plan.Actions, plans.LoadVariable{
				CellNum:       producerCellNum(graph, loadVNs[0]),
				VersionedName: loadVNs[0],
				FallbackCells: est.cells,
			})
		default:
			plan.Actions = append(plan.Actions, plans.IncrementalLoad{
				CellNum:        d.cellNum,
				VersionedNames: loadVNs,
				FallbackCells:  est.cells,
			})
		}

		for _, cellNum := range est.cells {
			code := est.code[cellNum]
			plan.Actions = append(plan.Actions, plans.RerunCell{CellNum: cellNum, Code: code})
		}
	}

	if len(plan.Actions) == 0 && len(target) > 0 {
		return nil, kishuerrors.ErrCommitIDNotExist
	}
	return plan, nil
}

// costOfLoad estimates the cost of deserializing vn, preferring its
// recorded serialized size when known.
func (p *Planner) costOfLoad(graph *ahg.AHG, vn types.VersionedName) float64 {
	if vs, ok := graph.LookupVS(vn); ok && vs.Size > 0 {
		return float64(vs.Size)
	}
	return baseLoadUnit * float64(len(vn.Names))
}

// rerunEstimate is the cost and ordered cell list to reconstruct a VN
// by rerunning its producer cell and, transitively, whatever its
// reads need. loads collects, keyed by VersionedName.Key(), every
// transitive read that was costed as a load rather than a rerun: the
// RestorePlan must load each of these before the cell(s) in cells run,
// or the evaluator has nothing to read them from.
type rerunEstimate struct {
	cost  float64
	cells []int
	code  map[int]string
	loads map[string]types.VersionedName
	err   error
}

// estimateRerun recursively estimates the cost to rerun vn's producer
// and its transitive reads, picking whichever of load/rerun is
// cheaper for each dependency. visiting guards against revisiting a
// VN already on the current recursion path; version numbers strictly
// increase per name so the dependency graph has no real cycles, but
// the guard keeps a malformed AHG from looping forever.
func (p *Planner) estimateRerun(graph *ahg.AHG, vn types.VersionedName, memo map[string]rerunEstimate, visiting map[string]bool) rerunEstimate {
	if cached, ok := memo[vn.Key()]; ok {
		return cached
	}
	if visiting[vn.Key()] {
		return rerunEstimate{cost: 0, err: kishuerrors.ErrRestorePlanMissing}
	}
	visiting[vn.Key()] = true
	defer delete(visiting, vn.Key())

	cell, ok := graph.ProducerCell(vn)
	if !ok {
		est := rerunEstimate{err: kishuerrors.ErrRestorePlanMissing}
		memo[vn.Key()] = est
		return est
	}

	cost := cell.Runtime * p.rerunWeight()
	cells := []int{cell.CellNum}
	code := map[int]string{cell.CellNum: cell.Code}
	loads := make(map[string]types.VersionedName)

	for _, read := range cell.Reads {
		loadCost := p.costOfLoad(graph, read)
		sub := p.estimateRerun(graph, read, memo, visiting)
		if sub.err == nil && sub.cost < loadCost {
			cost += sub.cost
			cells = append(sub.cells, cells...)
			for k, v := range sub.code {
				code[k] = v
			}
			for k, v := range sub.loads {
				loads[k] = v
			}
		} else {
			cost += loadCost
			loads[read.Key()] = read
		}
	}

	est := rerunEstimate{cost: cost, cells: dedupInts(cells), code: code, loads: loads}
	memo[vn.Key()] = est
	return est
}

// producerCellNum returns the cell number that wrote vn, or 0 if vn
// has no recorded producer (e.g. it came from a deserialized frontier
// with no cell history).
func producerCellNum(graph *ahg.AHG, vn types.VersionedName) int {
	if cell, ok := graph.ProducerCell(vn); ok {
		return cell.CellNum
	}
	return 0
}

// sortedLoads returns loads in deterministic VersionedName-key order.
func sortedLoads(loads map[string]types.VersionedName) []types.VersionedName {
	keys := make([]string, 0, len(loads))
	for k := range loads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.VersionedName, len(keys))
	for i, k := range keys {
		out[i] = loads[k]
	}
	return out
}

func (p *Planner) rerunWeight() float64 {
	if p.cfg.RerunCostWeight <= 0 {
		return 1.0
	}
	return p.cfg.RerunCostWeight
}

func dedupInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
