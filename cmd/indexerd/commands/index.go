package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codegraph-dev/indexer/internal/catalog"
	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/internal/jobs"
	"github.com/codegraph-dev/indexer/internal/observability"
	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/internal/tasks/cleanup"
	"github.com/codegraph-dev/indexer/internal/tasks/codeparsing"
	"github.com/codegraph-dev/indexer/internal/tasks/graphupdate"
	"github.com/codegraph-dev/indexer/internal/tasks/gitsync"
	"github.com/codegraph-dev/indexer/pkg/containerdriver"
	"github.com/codegraph-dev/indexer/pkg/graphwriter"
	"github.com/codegraph-dev/indexer/pkg/storage"
	"github.com/codegraph-dev/indexer/pkg/version"
)

// observabilityShutdownTimeout bounds the final tracer/meter flush so a
// stuck OTLP exporter can never hang process exit indefinitely.
const observabilityShutdownTimeout = 5 * time.Second

// IndexCommand holds the flags and dependency seams for one `index`
// invocation. It is the local, operator-driven stand-in for the job
// submission endpoint of the out-of-scope HTTP control plane (SPEC_FULL.md
// §1, §9A): one process, one job, run to completion, then exit.
type IndexCommand struct {
	configFile      string
	dataDir         string
	codebaseID      string
	codebaseName    string
	remoteURL       string
	catalogDir      string
	jobType         string
	baseCommit      string
	maxConcurrent   int
	dryRun          bool
	verbose         bool
	noColor         bool
	diagnosticsAddr string
}

// NewIndexCommand builds the `index` subcommand.
func NewIndexCommand() *cobra.Command {
	rc := &IndexCommand{jobType: string(tasks.JobFull)}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one indexing job against a registered codebase",
		Long: "Clone or update a codebase's working copy, parse it for structure, " +
			"and write the resulting graph, running the fixed GIT_SYNC -> " +
			"CODE_PARSING -> GRAPH_UPDATE -> CLEANUP pipeline to completion.\n\n" +
			registerOverrideFlagsPreview(),
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.configFile, "config", "", "Configuration file path (default: .indexerd.yaml in CWD or $HOME)")
	cmd.Flags().StringVar(&rc.dataDir, "data-dir", "", "Override storage.root from the config file")
	cmd.Flags().StringVar(&rc.codebaseID, "codebase-id", "", "Codebase identifier to index (required)")
	cmd.Flags().StringVar(&rc.codebaseName, "name", "", "Display name to register for a new codebase")
	cmd.Flags().StringVar(&rc.remoteURL, "remote", "", "Git remote URL; registers/updates the codebase in the catalog before indexing")
	cmd.Flags().StringVar(&rc.catalogDir, "catalog-dir", "", "Directory for the codebase catalog checkpoint (default: <data-dir>/catalog)")
	cmd.Flags().StringVar(&rc.jobType, "job-type", string(tasks.JobFull), "full or incremental")
	cmd.Flags().StringVar(&rc.baseCommit, "base-commit", "", "Commit GIT_SYNC diffs against for an incremental job")
	cmd.Flags().IntVar(&rc.maxConcurrent, "max-concurrent-jobs", 0, "Global worker pool size (0 = config default)")
	cmd.Flags().BoolVar(&rc.dryRun, "dry-run", false, "Compute and log GRAPH_UPDATE batches without writing to the graph database")
	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Raise log verbosity to debug and record hot-path trace spans")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored status output")
	cmd.Flags().StringVar(&rc.diagnosticsAddr, "diagnostics-addr", "", "Start a diagnostics HTTP server (health/metrics) at this address (e.g. :9090)")

	help := registerOverrideFlags(cmd)
	cmd.Long += "\n" + help

	_ = cmd.MarkFlagRequired("codebase-id")

	return cmd
}

func registerOverrideFlagsPreview() string {
	return fmt.Sprintf("%d per-job config overrides are available; see flag list below.", len(overrideSpecs))
}

func (rc *IndexCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rc.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if rc.dataDir != "" {
		cfg.Storage.Root = rc.dataDir
	}

	if rc.dryRun {
		cfg.GraphUpdate.DryRun = true
	}

	overrides, err := collectOverrides(cmd)
	if err != nil {
		return err
	}

	providers, err := rc.initObservability(cfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), observabilityShutdownTimeout)
		defer cancel()

		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	deps, err := rc.buildDependencies(cfg, providers)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := deps.writer.Close(context.Background()); closeErr != nil {
			providers.Logger.Warn("graph writer close failed", "error", closeErr)
		}

		if closeErr := deps.driver.Close(); closeErr != nil {
			providers.Logger.Warn("container driver close failed", "error", closeErr)
		}
	}()

	if rc.diagnosticsAddr != "" {
		diagServer, diagErr := observability.NewDiagnosticsServer(rc.diagnosticsAddr, providers.Meter, deps.writer.Ping)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}

		defer diagServer.Close()

		rc.progressf(cmd.ErrOrStderr(), "diagnostics server listening on %s", diagServer.Addr())
	}

	if rc.remoteURL != "" {
		name := rc.codebaseName
		if name == "" {
			name = rc.codebaseID
		}

		registerErr := deps.catalog.Register(jobs.Codebase{
			ID:            rc.codebaseID,
			Name:          name,
			RemoteURL:     rc.remoteURL,
			DefaultBranch: cfg.GitSync.Branch,
		})
		if registerErr != nil {
			return fmt.Errorf("register codebase: %w", registerErr)
		}
	}

	jobID, err := deps.orchestrator.Submit(ctx, rc.codebaseID, tasks.JobType(rc.jobType), rc.baseCommit, overrides)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	rc.progressf(cmd.ErrOrStderr(), "job %s submitted for codebase %s", jobID, rc.codebaseID)

	go func() {
		<-ctx.Done()
		rc.progressf(cmd.ErrOrStderr(), "signal received, cancelling job %s", jobID)

		if cancelErr := deps.orchestrator.Cancel(jobID); cancelErr != nil {
			providers.Logger.Warn("cancel on shutdown failed", "job", jobID, "error", cancelErr)
		}
	}()

	deps.orchestrator.Wait()

	job, err := deps.orchestrator.Job(jobID)
	if err != nil {
		return fmt.Errorf("load job result: %w", err)
	}

	rc.renderSummary(cmd.OutOrStdout(), job)

	if job.State == jobs.StateFailed || job.State == jobs.StateCancelled {
		return fmt.Errorf("job %s ended in state %s: %s", job.ID, job.State, job.FailureMsg)
	}

	return nil
}

type indexDependencies struct {
	storage      *storage.Facade
	driver       *containerdriver.Driver
	writer       *graphwriter.Writer
	catalog      *catalog.Catalog
	orchestrator *jobs.Orchestrator
}

func (rc *IndexCommand) buildDependencies(cfg *config.Config, providers observability.Providers) (*indexDependencies, error) {
	storageFacade, err := storage.New(cfg.Storage.Root,
		storage.WithMaxFileSize(cfg.Storage.MaxFileSizeBytes),
		storage.WithAllowedExtensions(cfg.Storage.AllowedExtensions),
	)
	if err != nil {
		return nil, fmt.Errorf("init storage facade: %w", err)
	}

	driver, err := containerdriver.New()
	if err != nil {
		return nil, fmt.Errorf("init container driver: %w", err)
	}

	graphPassword := ""
	if cfg.Graph.PasswordEnv != "" {
		graphPassword = os.Getenv(cfg.Graph.PasswordEnv)
	}

	graphCfg := graphwriter.DefaultConfig(cfg.Graph.URI, cfg.Graph.Username, graphPassword)
	graphCfg.BatchSize = cfg.GraphUpdate.BatchSize
	graphCfg.MaxConnectionPoolSize = cfg.Graph.MaxConnectionPoolSize
	graphCfg.MaxConnectionLifetime = cfg.Graph.MaxConnectionLifetime
	graphCfg.DryRun = cfg.GraphUpdate.DryRun

	writer, err := graphwriter.New(graphCfg)
	if err != nil {
		_ = driver.Close()

		return nil, fmt.Errorf("init graph writer: %w", err)
	}

	catalogDir := rc.catalogDir
	if catalogDir == "" {
		catalogDir = filepath.Join(cfg.Storage.Root, "catalog")
	}

	codebaseCatalog, err := catalog.Open(catalogDir)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	store := jobs.NewStore(filepath.Join(cfg.Storage.Root, "jobs"))
	resolver := config.NewResolver(*cfg)

	pipelineMetrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("init pipeline metrics: %w", err)
	}

	pipeline := []tasks.Task{
		gitsync.New(),
		codeparsing.New(storageFacade, driver),
		graphupdate.New(writer),
		cleanup.New(storageFacade),
	}

	opts := []jobs.Option{
		jobs.WithLogger(providers.Logger),
		jobs.WithTracer(providers.Tracer),
	}

	if rc.maxConcurrent > 0 {
		opts = append(opts, jobs.WithMaxConcurrentJobs(rc.maxConcurrent))
	}

	orchestrator, err := jobs.New(store, codebaseCatalog, storageFacade, resolver, pipeline, pipelineMetrics, opts...)
	if err != nil {
		return nil, fmt.Errorf("construct orchestrator: %w", err)
	}

	return &indexDependencies{
		storage:      storageFacade,
		driver:       driver,
		writer:       writer,
		catalog:      codebaseCatalog,
		orchestrator: orchestrator,
	}, nil
}

func (rc *IndexCommand) initObservability(cfg *config.Config) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Observability.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeCLI
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.TraceVerbose = rc.verbose

	if rc.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return observability.Init(obsCfg)
}

func (rc *IndexCommand) progressf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "indexerd: "+format+"\n", args...)
}

// renderSummary prints a per-task outcome table per SPEC_FULL.md §9C: one
// row per pipeline task with its outcome, duration, and attempt count,
// colored by outcome unless --no-color was set.
func (rc *IndexCommand) renderSummary(w io.Writer, job *jobs.Job) {
	color.NoColor = rc.noColor || color.NoColor

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Task", "Outcome", "Duration", "Attempts", "Error"})

	for _, summary := range job.Tasks {
		t.AppendRow(table.Row{
			string(summary.Task),
			colorizeOutcome(summary.Outcome),
			summary.Duration.Round(time.Millisecond),
			summary.Attempts,
			summary.Error,
		})
	}

	t.Render()

	fmt.Fprintf(w, "\njob %s: %s\n", job.ID, colorizeState(job.State))
}

func colorizeOutcome(outcome tasks.Outcome) string {
	switch outcome {
	case tasks.OutcomeSucceeded:
		return color.GreenString(string(outcome))
	case tasks.OutcomeFailed:
		return color.RedString(string(outcome))
	case tasks.OutcomeCancelled:
		return color.YellowString(string(outcome))
	case tasks.OutcomeSkipped:
		return color.CyanString(string(outcome))
	default:
		return string(outcome)
	}
}

func colorizeState(state jobs.State) string {
	switch state {
	case jobs.StateSucceeded:
		return color.GreenString(string(state))
	case jobs.StateFailed:
		return color.RedString(string(state))
	case jobs.StateCancelled:
		return color.YellowString(string(state))
	default:
		return string(state)
	}
}
