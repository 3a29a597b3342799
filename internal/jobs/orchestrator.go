package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/internal/observability"
	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/internal/tasks/gitsync"
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/storage"
)

// tracerName is the default OTel tracer name for orchestrator-level spans.
const tracerName = "indexerd.jobs"

// defaultMaxConcurrentJobs bounds the global worker pool when no Option
// overrides it. Per-codebase serialization (at most one job writing to a
// given codebase's graph at a time) is always enforced regardless of this
// setting; different codebases may still run concurrently up to this bound.
const defaultMaxConcurrentJobs = 4

// CodebaseCatalog is the out-of-scope external collaborator (§1, §6) that
// persists the project/codebase catalog. The orchestrator only needs to
// resolve a codebase reference at job start and record the indexed commit
// on success.
type CodebaseCatalog interface {
	Resolve(ctx context.Context, codebaseID string) (Codebase, error)
	RecordIndexed(ctx context.Context, codebaseID, commitHash string) error
}

// ProgressEvent is one observable side effect emitted as a task completes,
// per spec §4.1 ("emitted progress events { jobId, task, phase, metrics }").
type ProgressEvent struct {
	JobID    string
	Task     tasks.Name
	Phase    tasks.Outcome
	Duration time.Duration
	Attempts int
	Err      error
}

// EventSink receives ProgressEvents as the orchestrator emits them. Sinks
// must not block; a slow sink stalls task completion for every job.
type EventSink func(ProgressEvent)

// Orchestrator accepts jobs, runs each through the fixed task pipeline, and
// persists job state through Store. It owns the lifetime of the worker pool
// for as long as the process runs.
type Orchestrator struct {
	store    *Store
	catalog  CodebaseCatalog
	storage  *storage.Facade
	resolver *config.Resolver
	pipeline []tasks.Task
	metrics  *observability.PipelineMetrics
	logger   *slog.Logger
	tracer   trace.Tracer
	sink     EventSink

	sem chan struct{}

	mu            sync.Mutex
	codebaseLocks map[string]*sync.Mutex
	cancels       map[string]context.CancelFunc

	wg sync.WaitGroup
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithMaxConcurrentJobs overrides the default global worker pool size.
func WithMaxConcurrentJobs(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = make(chan struct{}, n)
		}
	}
}

// WithEventSink registers a callback invoked after every task run.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTracer overrides the default otel.Tracer(tracerName) tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// New constructs an Orchestrator. pipeline must be the four tasks in their
// fixed declared order (GIT_SYNC, CODE_PARSING, GRAPH_UPDATE, CLEANUP);
// the orchestrator does not reorder them.
func New(
	store *Store,
	catalog CodebaseCatalog,
	storageFacade *storage.Facade,
	resolver *config.Resolver,
	pipeline []tasks.Task,
	metrics *observability.PipelineMetrics,
	opts ...Option,
) (*Orchestrator, error) {
	if err := validatePipelineOrder(pipeline); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:         store,
		catalog:       catalog,
		storage:       storageFacade,
		resolver:      resolver,
		pipeline:      pipeline,
		metrics:       metrics,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		sem:           make(chan struct{}, defaultMaxConcurrentJobs),
		codebaseLocks: make(map[string]*sync.Mutex),
		cancels:       make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Submit accepts a job for codebaseID, persists its queued record, and
// runs it asynchronously through the task pipeline. It returns the new
// job's id immediately; the job continues running after Submit returns
// even if the caller's ctx is later cancelled (use Cancel for that).
func (o *Orchestrator) Submit(
	ctx context.Context,
	codebaseID string,
	jobType tasks.JobType,
	baseCommit string,
	overrides map[config.TaskName]map[string]any,
) (string, error) {
	codebase, err := o.catalog.Resolve(ctx, codebaseID)
	if err != nil {
		return "", err
	}

	cfg, err := o.resolver.ForJob(overrides)
	if err != nil {
		return "", err
	}

	job := &Job{
		ID:         uuid.NewString(),
		CodebaseID: codebaseID,
		Type:       jobType,
		State:      StateQueued,
		BaseCommit: baseCommit,
	}

	if err := o.store.Put(job); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)

	go o.runJob(runCtx, job.ID, codebase, jobType, baseCommit, cfg)

	return job.ID, nil
}

// Cancel signals the running job's task execution context. Cancellation is
// cooperative: the running task observes it at its next suspension point
// (subprocess wait, network call, batch boundary); CLEANUP still runs
// afterward.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()

	if !ok {
		return notFoundError("jobs.Orchestrator.Cancel", jobID)
	}

	cancel()

	return nil
}

// Wait blocks until every job submitted so far has reached a terminal
// state. Intended for tests and graceful shutdown, not request paths.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Job returns the current persisted record for jobID.
func (o *Orchestrator) Job(jobID string) (*Job, error) {
	return o.store.Get(jobID)
}

func (o *Orchestrator) runJob(
	ctx context.Context,
	jobID string,
	codebase Codebase,
	jobType tasks.JobType,
	baseCommit string,
	cfg *config.Config,
) {
	defer o.wg.Done()
	defer o.clearCancel(jobID)

	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		o.markTerminal(jobID, StateCancelled, "cancelled before a worker slot was available")

		return
	}

	defer func() { <-o.sem }()

	lock := o.codebaseLock(codebase.ID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.Get(jobID)
	if err != nil {
		o.logger.Error("job vanished before execution", "job", jobID, "error", err)

		return
	}

	if err := job.transitionTo(StateRunning); err != nil {
		o.logger.Error("illegal state transition", "job", jobID, "error", err)

		return
	}

	job.StartedAt = time.Now()
	_ = o.store.Put(job)

	o.metrics.RecordJobStart(ctx, string(jobType))

	jc := tasks.NewJobContext(jobID, jobType, tasks.CodebaseRef{
		ID:          codebase.ID,
		Name:        codebase.Name,
		RemoteURL:   codebase.RemoteURL,
		StoragePath: o.storage.CodebasePath(codebase.ID),
	}, baseCommit, cfg, o.logger)

	outcome, failureMsg := o.runPipeline(ctx, job, jc, jobType)

	if outcome == StateSucceeded {
		o.recordIndexedCommit(ctx, codebase.ID, jc)
	}

	job.EndedAt = time.Now()
	job.FailureMsg = failureMsg

	if err := job.transitionTo(outcome); err != nil {
		o.logger.Error("illegal terminal transition", "job", jobID, "error", err)
	}

	_ = o.store.Put(job)

	o.metrics.RecordJobOutcome(ctx, string(jobType), outcome == StateSucceeded)
}

// runPipeline runs every non-CLEANUP task in declared order, stopping at
// the first required-task failure or cancellation, then always runs
// CLEANUP regardless of how the loop ended.
func (o *Orchestrator) runPipeline(ctx context.Context, job *Job, jc *tasks.JobContext, jobType tasks.JobType) (State, string) {
	outcome := StateSucceeded

	var failureMsg string

	for _, task := range o.pipeline {
		if task.Name() == tasks.Cleanup {
			continue
		}

		if outcome != StateSucceeded {
			break
		}

		result := tasks.Run(ctx, task, jc, o.tracer)
		o.observe(job, jobType, result)

		switch result.Outcome {
		case tasks.OutcomeFailed:
			outcome = StateFailed
			failureMsg = result.Err.Error()
		case tasks.OutcomeCancelled:
			outcome = StateCancelled
			failureMsg = "job cancelled"
		case tasks.OutcomeSucceeded, tasks.OutcomeSkipped:
		}
	}

	for _, task := range o.pipeline {
		if task.Name() != tasks.Cleanup {
			continue
		}

		result := tasks.Run(context.WithoutCancel(ctx), task, jc, o.tracer)
		o.observe(job, jobType, result)
	}

	return outcome, failureMsg
}

func (o *Orchestrator) observe(job *Job, jobType tasks.JobType, result tasks.RunResult) {
	job.recordTask(result)

	o.metrics.RecordTaskRun(context.Background(), observability.JobRunStats{
		JobType:             string(jobType),
		TaskName:            string(result.Task),
		TaskDurationSeconds: result.Duration.Seconds(),
	})

	if o.sink != nil {
		o.sink(ProgressEvent{
			JobID:    job.ID,
			Task:     result.Task,
			Phase:    result.Outcome,
			Duration: result.Duration,
			Attempts: result.Attempts,
			Err:      result.Err,
		})
	}
}

func (o *Orchestrator) recordIndexedCommit(ctx context.Context, codebaseID string, jc *tasks.JobContext) {
	v, ok := jc.Get(tasks.GitSync)
	if !ok {
		return
	}

	result, ok := v.(gitsync.Result)
	if !ok || result.HeadSHA == "" {
		return
	}

	if err := o.catalog.RecordIndexed(ctx, codebaseID, result.HeadSHA); err != nil {
		o.logger.Warn("failed to record indexed commit", "codebase", codebaseID, "error", err)
	}
}

func (o *Orchestrator) markTerminal(jobID string, state State, reason string) {
	job, err := o.store.Get(jobID)
	if err != nil {
		return
	}

	if transitionErr := job.transitionTo(state); transitionErr != nil {
		return
	}

	job.EndedAt = time.Now()
	job.FailureMsg = reason
	_ = o.store.Put(job)
}

func (o *Orchestrator) clearCancel(jobID string) {
	o.mu.Lock()
	delete(o.cancels, jobID)
	o.mu.Unlock()
}

func (o *Orchestrator) codebaseLock(codebaseID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.codebaseLocks[codebaseID]
	if !ok {
		lock = &sync.Mutex{}
		o.codebaseLocks[codebaseID] = lock
	}

	return lock
}

// validatePipelineOrder returns a ConfigError during wiring (not at runtime)
// if pipeline omits a task name the orchestrator depends on existing, or
// lists the four tasks out of their fixed order, catching a construction
// mistake early rather than silently skipping CLEANUP.
func validatePipelineOrder(pipeline []tasks.Task) error {
	position := make(map[tasks.Name]int, len(pipeline))
	for i, t := range pipeline {
		position[t.Name()] = i
	}

	prev := -1

	for _, name := range []tasks.Name{tasks.GitSync, tasks.CodeParsing, tasks.GraphUpdate, tasks.Cleanup} {
		pos, ok := position[name]
		if !ok {
			return errs.New(errs.KindConfig, "jobs.validatePipelineOrder", "PIPELINE_TASK_MISSING",
				"pipeline is missing task "+string(name), nil)
		}

		if pos < prev {
			return errs.New(errs.KindConfig, "jobs.validatePipelineOrder", "PIPELINE_ORDER_INVALID",
				"pipeline lists task "+string(name)+" out of order", nil)
		}

		prev = pos
	}

	return nil
}
