package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var (
	tagMessage string
	tagDelete  string
	tagList    bool
)

var tagCmd = &cobra.Command{
	Use:   "tag <key> [name] [commit]",
	Short: "List, create, or delete tags",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  runTag,
}

func init() {
	tagCmd.Flags().StringVarP(&tagMessage, "message", "m", "", "tag message")
	tagCmd.Flags().StringVarP(&tagDelete, "delete", "d", "", "delete a tag")
	tagCmd.Flags().BoolVarP(&tagList, "list", "l", false, "list tags")
	rootCmd.AddCommand(tagCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])
	store, err := openReadStore(key)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	switch {
	case tagDelete != "":
		if err := store.meta.DeleteTag(tagDelete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted tag %s\n", tagDelete)
		return nil

	case tagList || len(args) == 1:
		tags, err := store.meta.ListTag()
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Fprintf(out, "%s\t%s\t%s\n", t.TagName, shortID(t.CommitID), t.Message)
		}
		return nil

	default:
		name := args[1]
		var commitID types.CommitID
		if len(args) == 3 {
			commitID, err = store.meta.ResolveCommitID(args[2])
		} else {
			commitID, err = resolveCommitOrHead(store, nil, 0)
		}
		if err != nil {
			return err
		}
		if err := store.meta.UpsertTag(types.Tag{TagName: name, CommitID: commitID, Message: tagMessage}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created tag %s at %s\n", name, shortID(commitID))
		return nil
	}
}
