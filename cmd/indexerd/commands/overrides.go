package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/pkg/pipeline"
)

// overrideSpec binds one per-job config override to a CLI flag. The flag's
// help text and type label are generated from the embedded
// pipeline.ConfigurationOption rather than hand-written, so the override
// table and its --help output can never drift apart.
type overrideSpec struct {
	pipeline.ConfigurationOption

	task  config.TaskName
	field string
}

// overrideSpecs describes every task field an index run may override for a
// single job without editing the process-wide config file. Timeout/Retries
// exist on all four tasks; the remaining fields are task-specific.
var overrideSpecs = []overrideSpec{
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "git_sync.timeout", Flag: "git-sync-timeout", Type: pipeline.StringConfigurationOption,
			Default: config.DefaultGitSyncTimeout.String(), Description: "GIT_SYNC task timeout (e.g. 10m)",
		},
		task: config.TaskGitSync, field: "timeout",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "git_sync.retries", Flag: "git-sync-retries", Type: pipeline.IntConfigurationOption,
			Default: config.DefaultGitSyncRetries, Description: "GIT_SYNC retry attempts on a retryable failure",
		},
		task: config.TaskGitSync, field: "retries",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "git_sync.branch", Flag: "branch", Type: pipeline.StringConfigurationOption,
			Default: config.DefaultGitSyncBranch, Description: "branch GIT_SYNC checks out",
		},
		task: config.TaskGitSync, field: "branch",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "code_parsing.timeout", Flag: "code-parsing-timeout", Type: pipeline.StringConfigurationOption,
			Default: config.DefaultCodeParsingTimeout.String(), Description: "CODE_PARSING task timeout (e.g. 15m)",
		},
		task: config.TaskCodeParsing, field: "timeout",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "code_parsing.retries", Flag: "code-parsing-retries", Type: pipeline.IntConfigurationOption,
			Default: config.DefaultCodeParsingRetries, Description: "CODE_PARSING retry attempts on a retryable failure",
		},
		task: config.TaskCodeParsing, field: "retries",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "graph_update.timeout", Flag: "graph-update-timeout", Type: pipeline.StringConfigurationOption,
			Default: config.DefaultGraphUpdateTimeout.String(), Description: "GRAPH_UPDATE task timeout (e.g. 10m)",
		},
		task: config.TaskGraphUpdate, field: "timeout",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "graph_update.retries", Flag: "graph-update-retries", Type: pipeline.IntConfigurationOption,
			Default: config.DefaultGraphUpdateRetries, Description: "GRAPH_UPDATE retry attempts on a retryable failure",
		},
		task: config.TaskGraphUpdate, field: "retries",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "graph_update.batch_size", Flag: "graph-batch-size", Type: pipeline.IntConfigurationOption,
			Default: config.DefaultGraphBatchSize, Description: "nodes/relationships per write transaction",
		},
		task: config.TaskGraphUpdate, field: "batch_size",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "cleanup.timeout", Flag: "cleanup-timeout", Type: pipeline.StringConfigurationOption,
			Default: config.DefaultCleanupTimeout.String(), Description: "CLEANUP task timeout (e.g. 2m)",
		},
		task: config.TaskCleanup, field: "timeout",
	},
	{
		ConfigurationOption: pipeline.ConfigurationOption{
			Name: "cleanup.retries", Flag: "cleanup-retries", Type: pipeline.IntConfigurationOption,
			Default: config.DefaultCleanupRetries, Description: "CLEANUP retry attempts on a retryable failure",
		},
		task: config.TaskCleanup, field: "retries",
	},
}

// registerOverrideFlags adds one cobra flag per overrideSpec, typed by its
// ConfigurationOption.Type, and returns the long help text block describing
// them (name, CLI flag, type, default), built with FormatDefault.
func registerOverrideFlags(cmd *cobra.Command) string {
	var help strings.Builder

	help.WriteString("Per-job overrides (apply to this run only, never written to the config file):\n")

	for i := range overrideSpecs {
		spec := &overrideSpecs[i]

		switch spec.Type {
		case pipeline.IntConfigurationOption:
			cmd.Flags().Int(spec.Flag, spec.Default.(int), spec.Description)
		case pipeline.StringConfigurationOption:
			cmd.Flags().String(spec.Flag, spec.Default.(string), spec.Description)
		case pipeline.BoolConfigurationOption, pipeline.FloatConfigurationOption, pipeline.StringsConfigurationOption, pipeline.PathConfigurationOption:
			// Unused by the current override table; every entry above is
			// int or string-typed.
		}

		typeLabel := spec.Type.String()
		if typeLabel == "" {
			typeLabel = "bool"
		}

		fmt.Fprintf(&help, "  --%-24s %-7s default %-10s %s\n", spec.Flag, typeLabel, spec.ConfigurationOption.FormatDefault(), spec.Description)
	}

	return help.String()
}

// collectOverrides reads every changed override flag off cmd and builds the
// map Orchestrator.Submit expects, touching only the task/field pairs the
// caller actually set.
func collectOverrides(cmd *cobra.Command) (map[config.TaskName]map[string]any, error) {
	overrides := make(map[config.TaskName]map[string]any)

	for i := range overrideSpecs {
		spec := &overrideSpecs[i]

		if !cmd.Flags().Changed(spec.Flag) {
			continue
		}

		var value any

		var err error

		switch spec.Type {
		case pipeline.IntConfigurationOption:
			value, err = cmd.Flags().GetInt(spec.Flag)
		case pipeline.StringConfigurationOption:
			value, err = cmd.Flags().GetString(spec.Flag)
		case pipeline.BoolConfigurationOption, pipeline.FloatConfigurationOption, pipeline.StringsConfigurationOption, pipeline.PathConfigurationOption:
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read flag --%s: %w", spec.Flag, err)
		}

		if overrides[spec.task] == nil {
			overrides[spec.task] = make(map[string]any)
		}

		overrides[spec.task][spec.field] = value
	}

	return overrides, nil
}
