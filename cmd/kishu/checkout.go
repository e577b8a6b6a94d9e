package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkoutSkipNotebook bool

var checkoutCmd = &cobra.Command{
	Use:   "checkout <key> <branch-or-commit>",
	Short: "Restore a past commit's variable namespace",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheckout,
}

func init() {
	checkoutCmd.Flags().BoolVar(&checkoutSkipNotebook, "skip-notebook", false, "restore the namespace without overwriting the notebook file")
	rootCmd.AddCommand(checkoutCmd)
}

func runCheckout(cmd *cobra.Command, args []string) error {
	key := deriveKey(args[0])
	ref := args[1]

	ctx := cmd.Context()
	ch, err := dialChannel(ctx, key)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Checkout(ctx, ref, checkoutSkipNotebook); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s\n", ref)
	return nil
}
