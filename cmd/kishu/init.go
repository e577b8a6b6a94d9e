package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/session"
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Instrument a notebook session with Kishu versioning",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	key := deriveKey(path)

	root, err := storesRoot()
	if err != nil {
		return err
	}

	c, err := session.Open(cfg, fs, sessionDir(root, key), key, nil, nil, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Install("", key); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized kishu session %s for %s\n", key, path)
	return nil
}
