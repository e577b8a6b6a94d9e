package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/varstore"
)

var statusShowSize bool

var statusCmd = &cobra.Command{
	Use:   "status <key> <commit>",
	Short: "Show a commit's full metadata",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowSize, "size", false, "fetch and report each active snapshot's stored byte size")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "commit:    %s\n", entry.CommitID)
	fmt.Fprintf(out, "kind:      %s\n", entry.Kind)
	fmt.Fprintf(out, "message:   %s\n", entry.Message)
	if len(branches) > 0 {
		names := make([]string, len(branches))
		for i, b := range branches {
			names[i] = b.BranchName
		}
		fmt.Fprintf(out, "branches:  %v\n", names)
	}
	fmt.Fprintf(out, "variables: %d active snapshot(s)\n", len(entry.ActiveVSFingerprint))
	var sizes [][]byte
	if statusShowSize && len(entry.ActiveVSFingerprint) > 0 {
		requests := make([]varstore.SnapshotRequest, len(entry.ActiveVSFingerprint))
		for i, vn := range entry.ActiveVSFingerprint {
			requests[i] = varstore.SnapshotRequest{VersionedName: vn, Context: vn.Names}
		}
		sizes, err = store.vars.GetVariableSnapshots(requests)
		if err != nil {
			return err
		}
	}
	for i, vn := range entry.ActiveVSFingerprint {
		if sizes != nil {
			fmt.Fprintf(out, "  - %v @v%d (%d bytes)\n", vn.Names.Sorted(), vn.Version, len(sizes[i]))
			continue
		}
		fmt.Fprintf(out, "  - %v @v%d\n", vn.Names.Sorted(), vn.Version)
	}
	if entry.RuntimeS != nil {
		fmt.Fprintf(out, "runtime_s: %.4f\n", *entry.RuntimeS)
	}
	if entry.ErrorInExec != nil {
		fmt.Fprintf(out, "error:     %s\n", *entry.ErrorInExec)
	}
	return nil
}
