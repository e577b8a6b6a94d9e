package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var (
	branchCreate string
	branchDelete string
	branchRename string
)

var branchCmd = &cobra.Command{
	Use:   "branch <key> [commit] | branch <key> -m <old> <new>",
	Short: "List, create, delete, or rename branches",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  runBranch,
}

func init() {
	branchCmd.Flags().StringVarP(&branchCreate, "create", "c", "", "create a branch at the given (or HEAD) commit")
	branchCmd.Flags().StringVarP(&branchDelete, "delete", "d", "", "delete a branch")
	branchCmd.Flags().StringVarP(&branchRename, "move", "m", "", "rename a branch: -m <old-name> <new-name>")
	rootCmd.AddCommand(branchCmd)
}

func runBranch(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])
	store, err := openReadStore(key)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	switch {
	case branchDelete != "":
		if err := store.meta.DeleteBranch(branchDelete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted branch %s\n", branchDelete)
		return nil

	case branchRename != "":
		if len(args) < 2 {
			return fmt.Errorf("--move requires the new branch name as a trailing argument")
		}
		newName := args[len(args)-1]
		if err := store.meta.RenameBranch(branchRename, newName); err != nil {
			return err
		}
		fmt.Fprintf(out, "Renamed branch %s to %s\n", branchRename, newName)
		return nil

	case branchCreate != "":
		commitID, err := resolveCommitOrHead(store, args, 1)
		if err != nil {
			return err
		}
		if err := store.meta.UpsertBranch(branchCreate, commitID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created branch %s at %s\n", branchCreate, shortID(commitID))
		return nil

	default:
		branches, err := store.meta.ListBranch()
		if err != nil {
			return err
		}
		head, err := store.meta.GetHead()
		if err != nil {
			return err
		}
		for _, b := range branches {
			marker := "  "
			if head.BranchName != nil && *head.BranchName == b.BranchName {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s\t%s\n", marker, b.BranchName, shortID(b.CommitID))
		}
		return nil
	}
}

// resolveCommitOrHead resolves args[idx] if present, otherwise HEAD.
func resolveCommitOrHead(store *readStore, args []string, idx int) (types.CommitID, error) {
	if len(args) > idx {
		return store.meta.ResolveCommitID(args[idx])
	}
	head, err := store.meta.GetHead()
	if err != nil {
		return "", err
	}
	if head.CommitID == nil {
		return "", fmt.Errorf("no commit to resolve: HEAD is empty")
	}
	return *head.CommitID, nil
}
