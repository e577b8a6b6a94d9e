package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var (
	logAll   bool
	logGraph bool
)

var logCmd = &cobra.Command{
	Use:   "log <key> [commit]",
	Short: "Show commit history",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().BoolVar(&logAll, "all", false, "show every commit in the store, not just ancestors of the given commit")
	logCmd.Flags().BoolVar(&logGraph, "graph", false, "prefix each entry with an ASCII graph marker")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])
	store, err := openReadStore(key)
	if err != nil {
		return err
	}
	defer store.Close()

	var start types.CommitID
	if len(args) == 2 {
		start, err = store.meta.ResolveCommitID(args[1])
		if err != nil {
			return err
		}
	} else {
		head, err := store.meta.GetHead()
		if err != nil {
			return err
		}
		if head.CommitID != nil {
			start = *head.CommitID
		}
	}

	var ids []types.CommitID
	if logAll {
		ids, err = store.meta.KeysLike("")
		if err != nil {
			return err
		}
	} else {
		nodes, err := store.grph.ListHistory(start)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			ids = append(ids, n.CommitID)
		}
	}

	entries, err := store.meta.GetCommits(ids)
	if err != nil {
		return err
	}
	branchesByCommit, err := store.meta.BranchesForCommits(ids)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		entry := entries[id]
		if entry == nil {
			continue
		}
		marker := ""
		if logGraph {
			marker = "* "
		}
		refs := ""
		for _, b := range branchesByCommit[id] {
			refs += fmt.Sprintf(" (%s)", b.BranchName)
		}
		fmt.Fprintf(out, "%s%s%s  %s\n", marker, shortID(id), refs, entry.Message)
	}
	return nil
}

// shortID returns the 8-character abbreviated form of a commit id used
// throughout log/status output, matching the teacher's short-hash
// display convention.
func shortID(id types.CommitID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
