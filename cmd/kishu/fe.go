// Frontend-oriented experimental commands (spec.md §6): fegraph and
// fecommit emit JSON shaped for a graphical frontend rather than a
// terminal, gated by config.Experiment.EnableFeCommands.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/graph"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var feGraphCmd = &cobra.Command{
	Use:    "fegraph <key>",
	Short:  "Emit a frontend-oriented commit graph as JSON (experimental)",
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE:   runFeGraph,
}

var feCommitCmd = &cobra.Command{
	Use:    "fecommit <key> <commit>",
	Short:  "Emit a frontend-oriented commit as JSON (experimental)",
	Args:   cobra.ExactArgs(2),
	Hidden: true,
	RunE:   runFeCommit,
}

func init() {
	rootCmd.AddCommand(feGraphCmd)
	rootCmd.AddCommand(feCommitCmd)
}

func requireExperimentalFeCommands() error {
	if !cfg.Experiment.EnableFeCommands {
		return kishuerrors.Wrap(kishuerrors.Resolution,
			"fe commands are disabled (set experiment.enable_fe_commands)", kishuerrors.ErrBranchNotFound)
	}
	return nil
}

// feVariable truncates a VS's name list to cfg.CLI.FeDepth entries, the
// "variable-attribute depth" knob spec.md §6 calls out for the
// frontend surface.
type feVariable struct {
	Names   []types.Name `json:"names"`
	Version int          `json:"version"`
}

func feVariables(vns []types.VersionedName) []feVariable {
	out := make([]feVariable, 0, len(vns))
	for _, vn := range vns {
		names := vn.Names.Sorted()
		depth := cfg.CLI.FeDepth
		if depth > 0 && depth < len(names) {
			names = names[:depth]
		}
		out = append(out, feVariable{Names: names, Version: vn.Version})
	}
	return out
}

type feNode struct {
	CommitID  types.CommitID        `json:"commit_id"`
	ParentID  types.CommitID        `json:"parent_id"`
	Message   string                `json:"message"`
	Branches  []string              `json:"branches"`
	Variables []feVariable          `json:"variables"`
	Kind      types.CommitEntryKind `json:"kind"`
}

type feGraphOutput struct {
	Head  types.Head `json:"head"`
	Nodes []feNode   `json:"nodes"`
}

func runFeGraph(cmd *cobra.Command, args []string) error {
	if err := requireExperimentalFeCommands(); err != nil {
		return err
	}
	key := deriveKey(args[0])
	store, err := openReadStore(key)
	if err != nil {
		return err
	}
	defer store.Close()

	head, err := store.meta.GetHead()
	if err != nil {
		return err
	}
	nodes, err := allReachableNodes(store, head)
	if err != nil {
		return err
	}
	ids := make([]types.CommitID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.CommitID
	}
	entries, err := store.meta.GetCommits(ids)
	if err != nil {
		return err
	}
	branchesByCommit, err := store.meta.BranchesForCommits(ids)
	if err != nil {
		return err
	}

	out := feGraphOutput{Head: head}
	for _, n := range nodes {
		entry := entries[n.CommitID]
		if entry == nil {
			continue
		}
		names := make([]string, 0, len(branchesByCommit[n.CommitID]))
		for _, b := range branchesByCommit[n.CommitID] {
			names = append(names, b.BranchName)
		}
		out.Nodes = append(out.Nodes, feNode{
			CommitID:  n.CommitID,
			ParentID:  n.ParentID,
			Message:   entry.Message,
			Branches:  names,
			Variables: feVariables(entry.ActiveVSFingerprint),
			Kind:      entry.Kind,
		})
	}

	return writeJSON(cmd, out)
}

type feCommitOutput struct {
	feNode
	RuntimeS *float64 `json:"runtime_s,omitempty"`
}

func runFeCommit(cmd *cobra.Command, args []string) error {
	if err := requireExperimentalFeCommands(); err != nil {
		return err
	}
	key := deriveKey(args[0])
	store, err := openReadStore(key)
	if err != nil {
		return err
	}
	defer store.Close()

	commitID, err := store.meta.ResolveCommitID(args[1])
	if err != nil {
		return err
	}
	entry, err := store.meta.GetCommit(commitID)
	if err != nil {
		return err
	}
	branches, err := store.meta.BranchesForCommit(commitID)
	if err != nil {
		return err
	}
	names := make([]string, len(branches))
	for i, b := range branches {
		names[i] = b.BranchName
	}

	parentID := types.CommitID("")
	if nodes, err := store.grph.ListHistory(commitID); err == nil && len(nodes) > 0 {
		parentID = nodes[0].ParentID
	}

	out := feCommitOutput{
		feNode: feNode{
			CommitID:  commitID,
			ParentID:  parentID,
			Message:   entry.Message,
			Branches:  names,
			Variables: feVariables(entry.ActiveVSFingerprint),
			Kind:      entry.Kind,
		},
		RuntimeS: entry.RuntimeS,
	}
	return writeJSON(cmd, out)
}

// allReachableNodes walks every branch tip (and HEAD, if detached) and
// merges their ancestor chains, since the commit graph itself only
// exposes per-tip traversal (ListHistory/GetCommonAncestor), not a
// full-store enumeration.
func allReachableNodes(store *readStore, head types.Head) ([]graph.Node, error) {
	tips := map[types.CommitID]struct{}{}
	if head.CommitID != nil {
		tips[*head.CommitID] = struct{}{}
	}
	branches, err := store.meta.ListBranch()
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		tips[b.CommitID] = struct{}{}
	}

	seen := map[types.CommitID]struct{}{}
	var out []graph.Node
	for tip := range tips {
		nodes, err := store.grph.ListHistory(tip)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if _, ok := seen[n.CommitID]; ok {
				continue
			}
			seen[n.CommitID] = struct{}{}
			out = append(out, n)
		}
	}
	return out, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
