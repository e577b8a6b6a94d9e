// Command kishu is the terminal CLI presentation layer over the
// versioned session-state engine: init/detach/list/log/status/commit/
// checkout/branch/tag plus the experimental fegraph/fecommit surface
// (spec.md §6). It is a thin adapter — every durable decision lives in
// internal/session, internal/metastore, internal/graph, and
// internal/planner; this package only parses flags, opens the right
// stores, and formats output.
//
// Grounded on cuemby-warren/cmd/warren: one cobra root command with
// persistent flags, one file per subcommand, RunE handlers that
// return wrapped errors for main to print.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/config"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/kishulog"
)

// fs is the filesystem every subcommand operates against. Tests swap
// it for an in-memory afero.Fs; production uses the real one.
var fs afero.Fs = afero.NewOsFs()

var (
	cfg     config.Config
	verbose bool
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:           "kishu",
	Short:         "Git-like versioning for interactive computation sessions",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return kishuerrors.Wrap(kishuerrors.Storage, "load config", err)
		}
		cfg = loaded
		if verbose {
			cfg.CLI.Verbose = true
		}
		kishulog.Init(cfg.CLI.Verbose, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "propagate full errors instead of a one-line diagnostic")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "root directory for session stores (default: $HOME/.kishu)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printDiagnostic(err)
		os.Exit(1)
	}
}

// printDiagnostic implements spec.md §7's policy: connection and
// resolution errors surface verbatim; everything else collapses to
// "Kishu internal error (<Kind>)" unless --verbose is set, in which
// case the full error (with its wrapped cause) propagates.
func printDiagnostic(err error) {
	if verbose {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	kind, ok := kishuerrors.KindOf(err)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	switch kind {
	case kishuerrors.Connection, kishuerrors.Resolution:
		fmt.Fprintln(os.Stderr, err)
	default:
		fmt.Fprintf(os.Stderr, "Kishu internal error (%s)\n", kind)
	}
}
