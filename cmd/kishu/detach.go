package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
)

var detachCmd = &cobra.Command{
	Use:   "detach <path>",
	Short: "Uninstrument a notebook session (commit history is preserved)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetach,
}

func init() {
	rootCmd.AddCommand(detachCmd)
}

func runDetach(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])

	root, err := storesRoot()
	if err != nil {
		return err
	}
	connPath := filepath.Join(sessionDir(root, key), "connection.json")
	if ok, _ := afero.Exists(fs, connPath); !ok {
		return kishuerrors.Wrap(kishuerrors.Notebook, "session was not attached", kishuerrors.ErrMissingConnectionInfo)
	}
	if err := fs.Remove(connPath); err != nil {
		return kishuerrors.Wrap(kishuerrors.Storage, "remove connection info", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Detached kishu session %s\n", key)
	return nil
}
