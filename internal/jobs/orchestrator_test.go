package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/internal/jobs"
	"github.com/codegraph-dev/indexer/internal/observability"
	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/storage"
)

type fakeCatalog struct {
	codebase       jobs.Codebase
	recordedID     string
	recordedCommit string
}

func (f *fakeCatalog) Resolve(context.Context, string) (jobs.Codebase, error) {
	return f.codebase, nil
}

func (f *fakeCatalog) RecordIndexed(_ context.Context, codebaseID, commit string) error {
	f.recordedID = codebaseID
	f.recordedCommit = commit

	return nil
}

type fakeTask struct {
	name                tasks.Name
	required            []tasks.Name
	optional            []tasks.Name
	shouldRun           bool
	execResult          any
	execErr             error
	blockUntilCancelled bool
}

func (f *fakeTask) Name() tasks.Name                        { return f.name }
func (f *fakeTask) RequiredUpstream() []tasks.Name          { return f.required }
func (f *fakeTask) OptionalUpstream() []tasks.Name          { return f.optional }
func (f *fakeTask) Timeout(*tasks.JobContext) time.Duration { return time.Second }
func (f *fakeTask) Retries(*tasks.JobContext) int           { return 0 }
func (f *fakeTask) EstimatedDuration() time.Duration        { return time.Millisecond }

func (f *fakeTask) ShouldRun(context.Context, *tasks.JobContext) (bool, error) {
	return f.shouldRun, nil
}

func (f *fakeTask) Validate(context.Context, *tasks.JobContext) error { return nil }

func (f *fakeTask) Execute(ctx context.Context, _ *tasks.JobContext) (any, error) {
	if f.blockUntilCancelled {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	return f.execResult, f.execErr
}

func (f *fakeTask) Cleanup(context.Context, *tasks.JobContext) error { return nil }

func newTestOrchestrator(t *testing.T, pipeline []tasks.Task, catalog jobs.CodebaseCatalog) *jobs.Orchestrator {
	t.Helper()

	store := jobs.NewStore("")

	facade, err := storage.New(t.TempDir())
	require.NoError(t, err)

	base := config.Config{
		Storage: config.StorageConfig{Root: t.TempDir()},
		Graph:   config.GraphConfig{URI: "bolt://localhost:7687", MaxConnectionPoolSize: 10},
		GitSync: config.GitSyncConfig{
			Timeout: config.DefaultGitSyncTimeout, Retries: config.DefaultGitSyncRetries, Branch: "main",
		},
		CodeParsing: config.CodeParsingConfig{
			Timeout: config.DefaultCodeParsingTimeout, Retries: config.DefaultCodeParsingRetries,
			PullImageTimeout: config.DefaultPullImageTimeout,
		},
		GraphUpdate: config.GraphUpdateConfig{
			Timeout: config.DefaultGraphUpdateTimeout, Retries: config.DefaultGraphUpdateRetries,
			BatchSize: config.DefaultGraphBatchSize,
		},
		Cleanup: config.CleanupConfig{Timeout: config.DefaultCleanupTimeout, Retries: config.DefaultCleanupRetries},
	}
	resolver := config.NewResolver(base)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewPipelineMetrics(mp.Meter("jobs_test"))
	require.NoError(t, err)

	o, err := jobs.New(store, catalog, facade, resolver, pipeline, metrics)
	require.NoError(t, err)

	return o
}

func fullPipeline(gitSync, parsing, graphUpdate *fakeTask) []tasks.Task {
	cleanupTask := &fakeTask{name: tasks.Cleanup, shouldRun: true}

	return []tasks.Task{gitSync, parsing, graphUpdate, cleanupTask}
}

func TestOrchestrator_SubmitRunsToSuccess(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{codebase: jobs.Codebase{ID: "cb1", Name: "demo", RemoteURL: "https://example.com/demo.git"}}

	pipeline := fullPipeline(
		&fakeTask{name: tasks.GitSync, shouldRun: true, execResult: "git-ok"},
		&fakeTask{name: tasks.CodeParsing, required: []tasks.Name{tasks.GitSync}, shouldRun: true, execResult: "parse-ok"},
		&fakeTask{name: tasks.GraphUpdate, required: []tasks.Name{tasks.GitSync}, shouldRun: true, execResult: "graph-ok"},
	)

	o := newTestOrchestrator(t, pipeline, catalog)

	jobID, err := o.Submit(context.Background(), "cb1", tasks.JobFull, "", nil)
	require.NoError(t, err)

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSucceeded, job.State)
	assert.Len(t, job.Tasks, 4)
}

func TestOrchestrator_FailedRequiredTaskStillRunsCleanup(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{codebase: jobs.Codebase{ID: "cb1", Name: "demo"}}

	failingErr := errs.New(errs.KindValidation, "fakeTask.Execute", "SYNTHETIC_FAILURE", "synthetic git sync failure", nil)

	pipeline := fullPipeline(
		&fakeTask{name: tasks.GitSync, shouldRun: true, execErr: failingErr},
		&fakeTask{name: tasks.CodeParsing, shouldRun: true},
		&fakeTask{name: tasks.GraphUpdate, shouldRun: true},
	)

	o := newTestOrchestrator(t, pipeline, catalog)

	jobID, err := o.Submit(context.Background(), "cb1", tasks.JobFull, "", nil)
	require.NoError(t, err)

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, job.State)

	// GIT_SYNC failed, CODE_PARSING/GRAPH_UPDATE never ran, CLEANUP always does.
	require.Len(t, job.Tasks, 2)
	assert.Equal(t, tasks.GitSync, job.Tasks[0].Task)
	assert.Equal(t, tasks.OutcomeFailed, job.Tasks[0].Outcome)
	assert.Equal(t, tasks.Cleanup, job.Tasks[1].Task)
	assert.Equal(t, tasks.OutcomeSucceeded, job.Tasks[1].Outcome)
}

func TestOrchestrator_SuccessWithoutGitSyncResultSkipsRecordIndexed(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{codebase: jobs.Codebase{ID: "cb1", Name: "demo"}}

	pipeline := fullPipeline(
		&fakeTask{name: tasks.GitSync, shouldRun: true},
		&fakeTask{name: tasks.CodeParsing, shouldRun: false},
		&fakeTask{name: tasks.GraphUpdate, shouldRun: false},
	)

	o := newTestOrchestrator(t, pipeline, catalog)

	_, err := o.Submit(context.Background(), "cb1", tasks.JobFull, "", nil)
	require.NoError(t, err)

	o.Wait()

	// fakeTask's GIT_SYNC doesn't write a gitsync.Result, so RecordIndexed is
	// never called here; this asserts the no-op path doesn't error or panic.
	assert.Empty(t, catalog.recordedID)
}

func TestOrchestrator_CancelMarksJobCancelled(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{codebase: jobs.Codebase{ID: "cb1", Name: "demo"}}

	pipeline := fullPipeline(
		&fakeTask{name: tasks.GitSync, shouldRun: true, blockUntilCancelled: true},
		&fakeTask{name: tasks.CodeParsing, shouldRun: true},
		&fakeTask{name: tasks.GraphUpdate, shouldRun: true},
	)

	o := newTestOrchestrator(t, pipeline, catalog)

	jobID, err := o.Submit(context.Background(), "cb1", tasks.JobFull, "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, jerr := o.Job(jobID)

		return jerr == nil && job.State == jobs.StateRunning
	}, time.Second, time.Millisecond)

	require.NoError(t, o.Cancel(jobID))

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCancelled, job.State)

	require.Len(t, job.Tasks, 2)
	assert.Equal(t, tasks.GitSync, job.Tasks[0].Task)
	assert.Equal(t, tasks.OutcomeCancelled, job.Tasks[0].Outcome)
	assert.Equal(t, tasks.Cleanup, job.Tasks[1].Task)
}

func TestStore_GetMissingJobReturnsError(t *testing.T) {
	t.Parallel()

	_, err := jobs.NewStore("").Get("missing")
	require.Error(t, err)
}
