// Package tasks defines the uniform task contract every pipeline step
// implements, and the base wrapper that enforces timeout, retry, and
// duration bookkeeping around it.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codegraph-dev/indexer/internal/config"
)

// Name identifies a task in the fixed GIT_SYNC -> CODE_PARSING ->
// GRAPH_UPDATE -> CLEANUP pipeline order.
type Name string

const (
	GitSync     Name = "GIT_SYNC"
	CodeParsing Name = "CODE_PARSING"
	GraphUpdate Name = "GRAPH_UPDATE"
	Cleanup     Name = "CLEANUP"
)

// JobType selects the sync strategy GIT_SYNC applies.
type JobType string

const (
	JobFull        JobType = "full"
	JobIncremental JobType = "incremental"
)

// CodebaseRef identifies the source repository a job indexes.
type CodebaseRef struct {
	ID          string
	Name        string
	RemoteURL   string
	StoragePath string
}

// JobContext carries everything a task needs: job identity, the codebase
// being indexed, the resolved configuration, and the upstream results
// written by earlier tasks in the pipeline.
type JobContext struct {
	JobID      string
	JobType    JobType
	Codebase   CodebaseRef
	BaseCommit string
	Config     *config.Config
	Logger     *slog.Logger

	mu   sync.RWMutex
	data map[Name]any
}

// NewJobContext constructs a JobContext ready for task execution.
func NewJobContext(jobID string, jobType JobType, codebase CodebaseRef, baseCommit string, cfg *config.Config, logger *slog.Logger) *JobContext {
	if logger == nil {
		logger = slog.Default()
	}

	return &JobContext{
		JobID:      jobID,
		JobType:    jobType,
		Codebase:   codebase,
		BaseCommit: baseCommit,
		Config:     cfg,
		Logger:     logger,
		data:       make(map[Name]any),
	}
}

// Set records the result produced by task name, visible to downstream
// tasks via Get.
func (jc *JobContext) Set(name Name, result any) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.data[name] = result
}

// Get returns the result task name produced, if it has run.
func (jc *JobContext) Get(name Name) (any, bool) {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	v, ok := jc.data[name]

	return v, ok
}

// Task is the uniform contract every pipeline step implements.
type Task interface {
	// Name is the task's identity in the fixed pipeline order.
	Name() Name

	// RequiredUpstream lists task names whose success is mandatory before
	// this task may run. OptionalUpstream lists task names this task may
	// read results from, but whose absence does not block it.
	RequiredUpstream() []Name
	OptionalUpstream() []Name

	// Timeout and Retries resolve this task's effective config (via the
	// config resolver, already scoped into jc.Config) into bounds the
	// base wrapper enforces around Execute.
	Timeout(jc *JobContext) time.Duration
	Retries(jc *JobContext) int

	// ShouldRun gates execution on job state and upstream data. A false
	// result marks the task skipped without failing the job.
	ShouldRun(ctx context.Context, jc *JobContext) (bool, error)

	// Validate performs precondition checks. A non-nil error is fatal for
	// the job.
	Validate(ctx context.Context, jc *JobContext) error

	// Execute performs the task's work, bounded by the effective timeout.
	// Its return value is written into jc via Set on success.
	Execute(ctx context.Context, jc *JobContext) (any, error)

	// Cleanup always runs after Execute, regardless of outcome. A non-nil
	// error is logged but never fails the task.
	Cleanup(ctx context.Context, jc *JobContext) error

	// EstimatedDuration is a scheduling hint, not an enforced bound.
	EstimatedDuration() time.Duration
}
