package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MRyutaro/kishu-vldb/internal/hostiface"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List kishu sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "include detached sessions, not just attached ones")
	rootCmd.AddCommand(listCmd)
}

// iterSessions walks <root>/sessions/*, reading connection.json where
// present. This is the CLI's concrete hostiface.SessionDiscovery: a
// session directory with no connection.json is a session that was
// detached (or never attached), and is only reported with --all since
// there is no live kernel to distinguish "alive" without the
// out-of-scope kernel integration layer.
func iterSessions(root string, all bool) ([]hostiface.ConnectionInfo, error) {
	if ok, err := afero.DirExists(fs, sessionsRoot(root)); err != nil || !ok {
		return nil, err
	}
	entries, err := afero.ReadDir(fs, sessionsRoot(root))
	if err != nil {
		return nil, err
	}

	var out []hostiface.ConnectionInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		connPath := filepath.Join(sessionsRoot(root), e.Name(), "connection.json")
		data, err := afero.ReadFile(fs, connPath)
		if err != nil {
			if all {
				out = append(out, hostiface.ConnectionInfo{NotebookKey: e.Name(), SessionDir: filepath.Join(sessionsRoot(root), e.Name())})
			}
			continue
		}
		var info hostiface.ConnectionInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotebookKey < out[j].NotebookKey })
	return out, nil
}

func runList(cmd *cobra.Command, args []string) error {
	root, err := storesRoot()
	if err != nil {
		return err
	}
	sessions, err := iterSessions(root, listAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no kishu sessions found")
		return nil
	}
	for _, s := range sessions {
		status := "detached"
		if ok, _ := afero.Exists(fs, filepath.Join(s.SessionDir, "connection.json")); ok {
			status = "attached"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", s.NotebookKey, status, s.SessionDir)
	}
	return nil
}
