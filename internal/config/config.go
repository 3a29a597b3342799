// Package config resolves the effective configuration for the indexing
// pipeline and its tasks by layering compiled-in defaults, a process-wide
// config file, environment variables, and per-job overrides.
package config

import (
	"time"

	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/units"
)

// Default values applied before any file, env, or override layer is read.
const (
	DefaultGitSyncTimeout             = 5 * time.Minute
	DefaultGitSyncRetries             = 2
	DefaultGitSyncBranch              = "main"
	DefaultCodeParsingTimeout         = 10 * time.Minute
	DefaultCodeParsingRetries         = 1
	DefaultPullImageTimeout           = 5 * time.Minute
	DefaultGraphUpdateTimeout         = 15 * time.Minute
	DefaultGraphUpdateRetries         = 3
	DefaultGraphBatchSize             = 100
	DefaultCleanupTimeout             = 1 * time.Minute
	DefaultCleanupRetries             = 0
	DefaultStorageMaxFileSize         = 100 * units.MiB
	DefaultGraphMaxConnectionPoolSize = 50
)

// Config is the top-level effective configuration for one indexerd process.
// mapstructure tags drive both file/env unmarshalling and per-job override
// decoding.
type Config struct {
	Storage       StorageConfig       `mapstructure:"storage"`
	Graph         GraphConfig         `mapstructure:"graph"`
	GitSync       GitSyncConfig       `mapstructure:"git_sync"`
	CodeParsing   CodeParsingConfig   `mapstructure:"code_parsing"`
	GraphUpdate   GraphUpdateConfig   `mapstructure:"graph_update"`
	Cleanup       CleanupConfig       `mapstructure:"cleanup"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StorageConfig configures the scoped filesystem facade.
type StorageConfig struct {
	Root              string   `mapstructure:"root"`
	MaxFileSizeBytes  int64    `mapstructure:"max_file_size_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// GraphConfig configures the connection to the graph database.
type GraphConfig struct {
	URI                   string        `mapstructure:"uri"`
	Username              string        `mapstructure:"username"`
	PasswordEnv           string        `mapstructure:"password_env"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	MaxConnectionLifetime time.Duration `mapstructure:"max_connection_lifetime"`
}

// GitSyncConfig configures the GIT_SYNC task.
type GitSyncConfig struct {
	Timeout                time.Duration `mapstructure:"timeout"`
	Retries                int           `mapstructure:"retries"`
	Branch                 string        `mapstructure:"branch"`
	AuthTokenEnv           string        `mapstructure:"auth_token_env"`
	SparseCheckoutPatterns []string      `mapstructure:"sparse_checkout_patterns"`
}

// CodeParsingConfig configures the CODE_PARSING task and the container
// driver it invokes.
type CodeParsingConfig struct {
	Timeout          time.Duration       `mapstructure:"timeout"`
	Retries          int                 `mapstructure:"retries"`
	Languages        []string            `mapstructure:"languages"`
	PullImageTimeout time.Duration       `mapstructure:"pull_image_timeout"`
	RuntimeOptions   map[string][]string `mapstructure:"runtime_options"`
}

// GraphUpdateConfig configures the GRAPH_UPDATE task and the graph writer.
type GraphUpdateConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	BatchSize int           `mapstructure:"batch_size"`
	DryRun    bool          `mapstructure:"dry_run"`
}

// CleanupConfig configures the CLEANUP task.
type CleanupConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	Retries             int           `mapstructure:"retries"`
	RemoveTempArtifacts bool          `mapstructure:"remove_temp_artifacts"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

// Validate checks Config invariants and returns the first *errs.Error found,
// tagged errs.KindConfig.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateGraph(); err != nil {
		return err
	}

	if err := c.validateGitSync(); err != nil {
		return err
	}

	if err := c.validateCodeParsing(); err != nil {
		return err
	}

	return c.validateGraphUpdateAndCleanup()
}

func (c *Config) validateStorage() error {
	if c.Storage.Root == "" {
		return errs.New(errs.KindConfig, "config.Validate", "STORAGE_ROOT_REQUIRED", "storage.root must be set", nil)
	}

	if c.Storage.MaxFileSizeBytes < 0 {
		return errs.New(errs.KindConfig, "config.Validate", "STORAGE_MAX_FILE_SIZE_NEGATIVE", "storage.max_file_size_bytes must be non-negative", nil)
	}

	return nil
}

func (c *Config) validateGraph() error {
	if c.Graph.URI == "" {
		return errs.New(errs.KindConfig, "config.Validate", "GRAPH_URI_REQUIRED", "graph.uri must be set", nil)
	}

	if c.Graph.MaxConnectionPoolSize <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GRAPH_POOL_SIZE_INVALID", "graph.max_connection_pool_size must be positive", nil)
	}

	return nil
}

func (c *Config) validateGitSync() error {
	if c.GitSync.Timeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GIT_SYNC_TIMEOUT_INVALID", "git_sync.timeout must be positive", nil)
	}

	if c.GitSync.Retries < 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GIT_SYNC_RETRIES_NEGATIVE", "git_sync.retries must be non-negative", nil)
	}

	return nil
}

func (c *Config) validateCodeParsing() error {
	if c.CodeParsing.Timeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "CODE_PARSING_TIMEOUT_INVALID", "code_parsing.timeout must be positive", nil)
	}

	if c.CodeParsing.Retries < 0 {
		return errs.New(errs.KindConfig, "config.Validate", "CODE_PARSING_RETRIES_NEGATIVE", "code_parsing.retries must be non-negative", nil)
	}

	if c.CodeParsing.PullImageTimeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "PULL_IMAGE_TIMEOUT_INVALID", "code_parsing.pull_image_timeout must be positive", nil)
	}

	return nil
}

func (c *Config) validateGraphUpdateAndCleanup() error {
	if c.GraphUpdate.Timeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GRAPH_UPDATE_TIMEOUT_INVALID", "graph_update.timeout must be positive", nil)
	}

	if c.GraphUpdate.Retries < 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GRAPH_UPDATE_RETRIES_NEGATIVE", "graph_update.retries must be non-negative", nil)
	}

	if c.GraphUpdate.BatchSize <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "GRAPH_UPDATE_BATCH_SIZE_INVALID", "graph_update.batch_size must be positive", nil)
	}

	if c.Cleanup.Timeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "CLEANUP_TIMEOUT_INVALID", "cleanup.timeout must be positive", nil)
	}

	if c.Cleanup.Retries < 0 {
		return errs.New(errs.KindConfig, "config.Validate", "CLEANUP_RETRIES_NEGATIVE", "cleanup.retries must be non-negative", nil)
	}

	return nil
}
