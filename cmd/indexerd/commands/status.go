package commands

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codegraph-dev/indexer/internal/catalog"
	"github.com/codegraph-dev/indexer/internal/config"
)

// StatusCommand lists every codebase registered in the local catalog and
// the commit each was last indexed at. It is the read-only counterpart of
// `index`: together they stand in for the submission and inspection halves
// of the out-of-scope HTTP control plane (SPEC_FULL.md §1, §9A).
type StatusCommand struct {
	configFile string
	dataDir    string
	catalogDir string
}

// NewStatusCommand builds the `status` subcommand.
func NewStatusCommand() *cobra.Command {
	sc := &StatusCommand{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List registered codebases and their last indexed commit",
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.configFile, "config", "", "Configuration file path (default: .indexerd.yaml in CWD or $HOME)")
	cmd.Flags().StringVar(&sc.dataDir, "data-dir", "", "Override storage.root from the config file")
	cmd.Flags().StringVar(&sc.catalogDir, "catalog-dir", "", "Directory holding the codebase catalog checkpoint (default: <data-dir>/catalog)")

	return cmd
}

func (sc *StatusCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(sc.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if sc.dataDir != "" {
		cfg.Storage.Root = sc.dataDir
	}

	catalogDir := sc.catalogDir
	if catalogDir == "" {
		catalogDir = filepath.Join(cfg.Storage.Root, "catalog")
	}

	cat, err := catalog.Open(catalogDir)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	codebases := cat.List()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"ID", "Name", "Remote", "Branch", "Last Indexed Commit"})

	for _, cb := range codebases {
		commit := cb.LastIndexedCommit
		if commit == "" {
			commit = "(never indexed)"
		}

		t.AppendRow(table.Row{cb.ID, cb.Name, cb.RemoteURL, cb.DefaultBranch, commit})
	}

	t.Render()

	if len(codebases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no codebases registered; run `indexerd index --remote <url> --codebase-id <id>` to register one")
	}

	return nil
}
