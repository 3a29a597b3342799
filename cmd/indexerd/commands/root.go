// Package commands implements the indexerd CLI command handlers: the local
// stand-in for the job-submission and status halves of the indexing
// pipeline's out-of-scope HTTP control plane (SPEC_FULL.md §1, §9A).
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the indexerd root command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexerd",
		Short: "Codebase indexing pipeline CLI",
		Long: `indexerd runs the indexing pipeline (GIT_SYNC -> CODE_PARSING ->
GRAPH_UPDATE -> CLEANUP) as one-shot jobs against registered codebases.

Commands:
  index    Run one indexing job against a codebase
  status   List registered codebases and their last indexed commit
  version  Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewIndexCommand())
	root.AddCommand(NewStatusCommand())
	root.AddCommand(NewVersionCommand())

	return root
}
