// Package cleanup implements the CLEANUP task: remove the job's temporary
// scratch directory and report bytes freed. The codebase working copy is
// never touched here — it is the canonical storage the next job's GIT_SYNC
// reuses.
package cleanup

import (
	"context"
	"time"

	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/pkg/storage"
)

// Result is the CLEANUP output: how much scratch space the task reclaimed.
type Result struct {
	TempFilesRemoved int
	DiskSpaceFreed   int64
}

// Task implements tasks.Task for CLEANUP. It always runs: the base Runner
// invokes every task's Cleanup hook regardless of outcome, but CLEANUP is
// also a pipeline task in its own right so its Execute is what actually
// removes the scratch directory and reports the freed-space metrics.
type Task struct {
	storage *storage.Facade
}

// New constructs the CLEANUP task. storage scopes the per-job temp
// directory this task removes.
func New(store *storage.Facade) *Task {
	return &Task{storage: store}
}

func (t *Task) Name() tasks.Name               { return tasks.Cleanup }
func (t *Task) RequiredUpstream() []tasks.Name { return nil }
func (t *Task) OptionalUpstream() []tasks.Name { return []tasks.Name{tasks.GitSync, tasks.CodeParsing, tasks.GraphUpdate} }

func (t *Task) Timeout(jc *tasks.JobContext) time.Duration {
	return jc.Config.Cleanup.Timeout
}

func (t *Task) Retries(jc *tasks.JobContext) int {
	return jc.Config.Cleanup.Retries
}

func (t *Task) EstimatedDuration() time.Duration { return 5 * time.Second }

// ShouldRun always runs: cleanup is unconditional per spec §4.1 — it
// executes at job end whether upstream tasks succeeded, failed, or were
// cancelled.
func (t *Task) ShouldRun(context.Context, *tasks.JobContext) (bool, error) {
	return true, nil
}

// Validate has no preconditions: removing an absent directory is a no-op,
// not an error.
func (t *Task) Validate(context.Context, *tasks.JobContext) error {
	return nil
}

// Execute removes the job's temp scratch directory (storage/temp/<jobID>),
// if configured to do so, and reports what it freed. Failure here is
// recorded as this task's outcome and never changes the job's outcome.
func (t *Task) Execute(_ context.Context, jc *tasks.JobContext) (any, error) {
	if !jc.Config.Cleanup.RemoveTempArtifacts {
		return Result{}, nil
	}

	tempDir := t.storage.TempPath(jc.JobID)

	filesRemoved, bytesFreed, err := t.storage.RemoveAll(tempDir)
	if err != nil {
		return nil, err
	}

	return Result{TempFilesRemoved: filesRemoved, DiskSpaceFreed: bytesFreed}, nil
}

// Cleanup has nothing further to release: Execute already removed the
// scratch directory this task owns.
func (t *Task) Cleanup(context.Context, *tasks.JobContext) error {
	return nil
}
