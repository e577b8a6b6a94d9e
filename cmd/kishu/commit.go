package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	commitMessage string
	commitEditRef string
)

var commitCmd = &cobra.Command{
	Use:   "commit <key>",
	Short: "Commit the current namespace, or edit a past commit's message",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	commitCmd.Flags().StringVarP(&commitEditRef, "edit", "e", "", "edit the message of an existing commit instead of creating one")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])

	if commitEditRef != "" {
		store, err := openReadStore(key)
		if err != nil {
			return err
		}
		defer store.Close()

		commitID, err := store.meta.ResolveCommitID(commitEditRef)
		if err != nil {
			return err
		}
		if err := store.meta.UpdateCommitMessage(commitID, commitMessage); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated message of %s\n", shortID(commitID))
		return nil
	}

	ctx := cmd.Context()
	ch, err := dialChannel(ctx, key)
	if err != nil {
		return err
	}
	defer ch.Close()

	entry, err := ch.Commit(ctx, commitMessage)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", shortID(entry.CommitID))
	return nil
}
