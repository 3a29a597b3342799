package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// configName is the config file name without extension.
const configName = ".indexerd"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for indexerd settings.
const envPrefix = "INDEXERD"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load reads configuration from defaults, a config file, and env vars, in
// that increasing priority order. If configPath is non-empty it names an
// explicit config file; otherwise one is searched for in the working
// directory and the user's home directory. A missing config file is not
// an error; defaults (and any env overrides) still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.KindConfig, "config.Load", "CONFIG_FILE_READ_FAILED", err, "read config file")
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, "config.Load", "CONFIG_UNMARSHAL_FAILED", err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", "./.indexerd/data")
	v.SetDefault("storage.max_file_size_bytes", DefaultStorageMaxFileSize)
	v.SetDefault("storage.allowed_extensions", []string{})

	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password_env", "INDEXERD_GRAPH_PASSWORD")
	v.SetDefault("graph.max_connection_pool_size", DefaultGraphMaxConnectionPoolSize)
	v.SetDefault("graph.max_connection_lifetime", 30*time.Minute)

	v.SetDefault("git_sync.timeout", DefaultGitSyncTimeout)
	v.SetDefault("git_sync.retries", DefaultGitSyncRetries)
	v.SetDefault("git_sync.branch", DefaultGitSyncBranch)
	v.SetDefault("git_sync.auth_token_env", "")
	v.SetDefault("git_sync.sparse_checkout_patterns", []string{})

	v.SetDefault("code_parsing.timeout", DefaultCodeParsingTimeout)
	v.SetDefault("code_parsing.retries", DefaultCodeParsingRetries)
	v.SetDefault("code_parsing.languages", []string{"Java", "TypeScript", "JavaScript"})
	v.SetDefault("code_parsing.pull_image_timeout", DefaultPullImageTimeout)
	v.SetDefault("code_parsing.runtime_options", map[string][]string{})

	v.SetDefault("graph_update.timeout", DefaultGraphUpdateTimeout)
	v.SetDefault("graph_update.retries", DefaultGraphUpdateRetries)
	v.SetDefault("graph_update.batch_size", DefaultGraphBatchSize)
	v.SetDefault("graph_update.dry_run", false)

	v.SetDefault("cleanup.timeout", DefaultCleanupTimeout)
	v.SetDefault("cleanup.retries", DefaultCleanupRetries)
	v.SetDefault("cleanup.remove_temp_artifacts", true)

	v.SetDefault("observability.service_name", "indexerd")
	v.SetDefault("observability.metrics_addr", ":9090")
	v.SetDefault("observability.tracing_enabled", false)
}
