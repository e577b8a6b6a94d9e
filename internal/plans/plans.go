// Package plans implements the executable side of a checkpoint or
// restore: CheckpointPlan.Run serializes and persists variable
// snapshots, RestorePlan.Run replays load/move/rerun actions to
// reassemble a namespace. The planner package decides which actions
// to build; this package only knows how to carry them out.
package plans

import (
	"context"
	"fmt"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/codec"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
	"github.com/MRyutaro/kishu-vldb/internal/varstore"
)

// Serializer encodes and decodes variable snapshot payloads. It is
// pluggable the same way internal/codec.Codec is; Default uses the
// same MessagePack codec so a snapshot round-trips through either one.
type Serializer = codec.Codec

// DefaultSerializer is the MessagePack serializer used unless a
// session is configured with a different one.
var DefaultSerializer Serializer = codec.Default

// StoreVariable persists one VS's current value under commitID.
type StoreVariable struct {
	VersionedName types.VersionedName
}

// CheckpointPlan is an ordered list of variables to persist.
type CheckpointPlan struct {
	CommitID types.CommitID
	Actions  []StoreVariable
}

// FailedStore records a VS that could not be serialized during a
// checkpoint, which makes it a rerun candidate at restore time.
type FailedStore struct {
	VersionedName types.VersionedName
	Err           error
}

// Run serializes every action's VS from ns and persists it to vs.
// Failures are recorded and skipped rather than aborting the whole
// checkpoint, matching the "robust object-graph serializer" contract:
// an unpicklable value degrades to a rerun candidate, it doesn't fail
// the commit.
func (p *CheckpointPlan) Run(ns ahg.Namespace, store *varstore.Store, serializer Serializer) ([]FailedStore, error) {
	var failures []FailedStore
	for _, action := range p.Actions {
		values := make(map[types.Name]any, len(action.VersionedName.Names))
		for name := range action.VersionedName.Names {
			values[name] = ns[name]
		}
		blob, err := serializer.Marshal(values)
		if err != nil {
			failures = append(failures, FailedStore{
				VersionedName: action.VersionedName,
				Err:           kishuerrors.Wrap(kishuerrors.Planning, "serialize "+action.VersionedName.Key(), kishuerrors.ErrUnserializableVS),
			})
			continue
		}
		if err := store.Put(p.CommitID, action.VersionedName, blob); err != nil {
			return failures, err
		}
	}
	return failures, nil
}

// Action is one step of a RestorePlan.
type Action interface {
	isAction()
}

// LoadVariable deserializes a single VS's blob into the result
// namespace; FallbackCells are rerun in order if deserialization
// fails.
type LoadVariable struct {
	CellNum       int
	VersionedName types.VersionedName
	FallbackCells []int
}

func (LoadVariable) isAction() {}

// IncrementalLoad batches several VersionedName loads that share a
// restore context into a single VariableStore round trip.
type IncrementalLoad struct {
	CellNum        int
	VersionedNames []types.VersionedName
	FallbackCells  []int
}

func (IncrementalLoad) isAction() {}

// MoveVariable copies names already present in the live namespace
// instead of reloading them, used when the target VS is unchanged
// since the checkout's common ancestor.
type MoveVariable struct {
	Names types.NameSet
}

func (MoveVariable) isAction() {}

// RerunCell re-executes code to reconstruct values that cannot be
// loaded from storage.
type RerunCell struct {
	CellNum int
	Code    string
}

func (RerunCell) isAction() {}

// RestorePlan is an ordered list of actions that reassemble a
// namespace equal (by key set and per-key equality) to the one
// committed at TargetCommitID.
type RestorePlan struct {
	TargetCommitID types.CommitID
	Actions        []Action
}

// Run executes the plan against current (the live namespace, used by
// MoveVariable) and returns the assembled result namespace along with
// every action that had to fall back to a rerun.
func (p *RestorePlan) Run(ctx context.Context, current ahg.Namespace, store *varstore.Store, evaluator hostiface.Evaluator, serializer Serializer, cellCode map[int]string) (ahg.Namespace, []Action, error) {
	result := make(ahg.Namespace)
	var fallbacked []Action

	for _, action := range p.Actions {
		switch a := action.(type) {
		case MoveVariable:
			for name := range a.Names {
				v, ok := current[name]
				if !ok {
					return nil, fallbacked, kishuerrors.Wrap(kishuerrors.Planning, fmt.Sprintf("move %q not present in current namespace", name), kishuerrors.ErrLoadFailed)
				}
				result[name] = v
			}

		case LoadVariable:
			values, err := loadOne(store, serializer, a.VersionedName)
			if err != nil {
				if len(a.FallbackCells) == 0 {
					return nil, fallbacked, kishuerrors.Wrap(kishuerrors.Planning, a.VersionedName.Key()+" has no stored blob and no rerun fallback", kishuerrors.ErrCommitIDNotExist)
				}
				fallbacked = append(fallbacked, a)
				out, rerunErr := runFallback(ctx, evaluator, result, a.FallbackCells, cellCode)
				if rerunErr != nil {
					return nil, fallbacked, rerunErr
				}
				mergeInto(result, out)
				continue
			}
			mergeInto(result, values)

		case IncrementalLoad:
			requests := make([]varstore.SnapshotRequest, len(a.VersionedNames))
			for i, vn := range a.VersionedNames {
				requests[i] = varstore.SnapshotRequest{VersionedName: vn, Context: vn.Names}
			}
			blobs, err := store.GetVariableSnapshots(requests)
			if err != nil {
				if len(a.FallbackCells) == 0 {
					return nil, fallbacked, kishuerrors.Wrap(kishuerrors.Planning, "incremental load has no stored blobs and no rerun fallback", kishuerrors.ErrCommitIDNotExist)
				}
				fallbacked = append(fallbacked, a)
				out, rerunErr := runFallback(ctx, evaluator, result, a.FallbackCells, cellCode)
				if rerunErr != nil {
					return nil, fallbacked, rerunErr
				}
				mergeInto(result, out)
				continue
			}
			for _, blob := range blobs {
				values, err := decodeBlob(serializer, blob)
				if err != nil {
					return nil, fallbacked, err
				}
				mergeInto(result, values)
			}

		case RerunCell:
			out, err := evaluator.Execute(ctx, a.Code, result)
			if err != nil {
				return nil, fallbacked, kishuerrors.Wrap(kishuerrors.Planning, "rerun cell "+a.Code, err)
			}
			mergeInto(result, out)
		}
	}

	return result, fallbacked, nil
}

func loadOne(store *varstore.Store, serializer Serializer, vn types.VersionedName) (ahg.Namespace, error) {
	blobs, err := store.GetVariableSnapshots([]varstore.SnapshotRequest{{VersionedName: vn, Context: vn.Names}})
	if err != nil {
		return nil, err
	}
	return decodeBlob(serializer, blobs[0])
}

func decodeBlob(serializer Serializer, blob []byte) (ahg.Namespace, error) {
	var values map[types.Name]any
	if err := serializer.Unmarshal(blob, &values); err != nil {
		return nil, kishuerrors.Wrap(kishuerrors.Planning, "deserialize blob", kishuerrors.ErrLoadFailed)
	}
	out := make(ahg.Namespace, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

func runFallback(ctx context.Context, evaluator hostiface.Evaluator, seed ahg.Namespace, cellNums []int, cellCode map[int]string) (ahg.Namespace, error) {
	ns := make(ahg.Namespace, len(seed))
	mergeInto(ns, seed)
	for _, cellNum := range cellNums {
		code, ok := cellCode[cellNum]
		if !ok {
			return nil, kishuerrors.Wrap(kishuerrors.Planning, fmt.Sprintf("no code recorded for fallback cell %d", cellNum), kishuerrors.ErrLoadFailed)
		}
		out, err := evaluator.Execute(ctx, code, ns)
		if err != nil {
			return nil, kishuerrors.Wrap(kishuerrors.Planning, fmt.Sprintf("fallback rerun of cell %d", cellNum), err)
		}
		mergeInto(ns, out)
	}
	return ns, nil
}

func mergeInto(dst, src ahg.Namespace) {
	for k, v := range src {
		dst[k] = v
	}
}
