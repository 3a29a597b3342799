package config

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// TaskName identifies one of the fixed pipeline tasks for override scoping.
type TaskName string

// The fixed task names a job's overrides map may key into.
const (
	TaskGitSync     TaskName = "git_sync"
	TaskCodeParsing TaskName = "code_parsing"
	TaskGraphUpdate TaskName = "graph_update"
	TaskCleanup     TaskName = "cleanup"
)

// Resolver produces the effective Config for a job by layering per-job
// overrides on top of the process-wide base Config. A task's GetConfig
// only ever sees its own task's slice of the override map; other tasks'
// overrides never reach it.
type Resolver struct {
	base Config
}

// NewResolver wraps the process-wide base configuration.
func NewResolver(base Config) *Resolver {
	return &Resolver{base: base}
}

// ForJob returns a Config reflecting base plus overrides, keyed by
// TaskName. Each task's override value is decoded onto a copy of that
// task's own config section only; unrecognized task names in overrides
// are ignored so callers cannot smuggle fields into an unrelated task.
// The merged Config is validated before being returned.
func (r *Resolver) ForJob(overrides map[TaskName]map[string]any) (*Config, error) {
	cfg := r.base

	if raw, ok := overrides[TaskGitSync]; ok {
		if err := decodeInto(raw, &cfg.GitSync); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "config.Resolver.ForJob", "GIT_SYNC_OVERRIDE_INVALID", err, "decode git_sync overrides")
		}
	}

	if raw, ok := overrides[TaskCodeParsing]; ok {
		if err := decodeInto(raw, &cfg.CodeParsing); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "config.Resolver.ForJob", "CODE_PARSING_OVERRIDE_INVALID", err, "decode code_parsing overrides")
		}
	}

	if raw, ok := overrides[TaskGraphUpdate]; ok {
		if err := decodeInto(raw, &cfg.GraphUpdate); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "config.Resolver.ForJob", "GRAPH_UPDATE_OVERRIDE_INVALID", err, "decode graph_update overrides")
		}
	}

	if raw, ok := overrides[TaskCleanup]; ok {
		if err := decodeInto(raw, &cfg.Cleanup); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "config.Resolver.ForJob", "CLEANUP_OVERRIDE_INVALID", err, "decode cleanup overrides")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetConfig returns the resolved section for a single task, matching the
// GetConfig(ctx) contract each task exposes.
func GetConfig[T any](cfg *Config, taskName TaskName) T {
	var zero T

	switch taskName {
	case TaskGitSync:
		if v, ok := any(cfg.GitSync).(T); ok {
			return v
		}
	case TaskCodeParsing:
		if v, ok := any(cfg.CodeParsing).(T); ok {
			return v
		}
	case TaskGraphUpdate:
		if v, ok := any(cfg.GraphUpdate).(T); ok {
			return v
		}
	case TaskCleanup:
		if v, ok := any(cfg.Cleanup).(T); ok {
			return v
		}
	}

	return zero
}

func decodeInto(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(raw)
}
