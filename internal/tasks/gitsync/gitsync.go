// Package gitsync implements the GIT_SYNC task: clone or pull the codebase
// working copy and report which files changed.
package gitsync

import (
	"context"
	"os"
	"time"

	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/gitclient"
)

// Result is the GIT_SYNC output downstream tasks read from the job
// context via Get(tasks.GitSync).
type Result struct {
	FilesAdded   []string
	FilesChanged []string
	FilesDeleted []string
	HeadSHA      string
}

// Task implements tasks.Task for GIT_SYNC.
type Task struct {
	newClient func(authToken string) *gitclient.Client
}

// New constructs the GIT_SYNC task.
func New() *Task {
	return &Task{newClient: gitclient.New}
}

func (t *Task) Name() tasks.Name               { return tasks.GitSync }
func (t *Task) RequiredUpstream() []tasks.Name { return nil }
func (t *Task) OptionalUpstream() []tasks.Name { return nil }

func (t *Task) Timeout(jc *tasks.JobContext) time.Duration {
	return jc.Config.GitSync.Timeout
}

func (t *Task) Retries(jc *tasks.JobContext) int {
	return jc.Config.GitSync.Retries
}

func (t *Task) EstimatedDuration() time.Duration { return 30 * time.Second }

// ShouldRun always runs: every job indexes a codebase, so GIT_SYNC has no
// upstream gate.
func (t *Task) ShouldRun(context.Context, *tasks.JobContext) (bool, error) {
	return true, nil
}

// Validate checks that the codebase has a remote URL to sync from.
func (t *Task) Validate(_ context.Context, jc *tasks.JobContext) error {
	if jc.Codebase.RemoteURL == "" {
		return errs.New(errs.KindValidation, "gitsync.Validate", "REMOTE_URL_REQUIRED",
			"codebase has no remote URL configured", nil)
	}

	if jc.Codebase.StoragePath == "" {
		return errs.New(errs.KindValidation, "gitsync.Validate", "STORAGE_PATH_REQUIRED",
			"codebase has no storage path configured", nil)
	}

	return nil
}

// Execute performs a full clone or an incremental pull, per jc.JobType and
// whether the storage path already holds a repository.
func (t *Task) Execute(ctx context.Context, jc *tasks.JobContext) (any, error) {
	cfg := jc.Config.GitSync
	client := t.newClient(resolveAuthToken(cfg))

	dir := jc.Codebase.StoragePath
	_, statErr := os.Stat(dir)
	hasRepo := statErr == nil

	var result Result

	switch {
	case jc.JobType == tasks.JobFull || !hasRepo:
		if hasRepo {
			if err := os.RemoveAll(dir); err != nil {
				return nil, errs.Wrap(errs.KindState, "gitsync.Execute", "WORKDIR_CLEANUP_FAILED", err,
					"remove existing working copy %s", dir)
			}
		}

		if err := client.Clone(ctx, jc.Codebase.RemoteURL, cfg.Branch, dir); err != nil {
			return nil, err
		}

		if len(cfg.SparseCheckoutPatterns) > 0 {
			if err := client.EnableSparseCheckout(ctx, dir, cfg.SparseCheckoutPatterns); err != nil {
				return nil, err
			}
		}

		files, err := client.ListFiles(ctx, dir)
		if err != nil {
			return nil, err
		}

		result.FilesAdded = files
	default:
		if err := client.Pull(ctx, dir); err != nil {
			return nil, err
		}

		if jc.BaseCommit != "" {
			changes, err := client.DiffNameStatus(ctx, dir, jc.BaseCommit)
			if err != nil {
				return nil, err
			}

			bucketChanges(&result, changes)
		}
	}

	sha, err := client.HeadSHA(ctx, dir)
	if err != nil {
		return nil, err
	}

	result.HeadSHA = sha

	return result, nil
}

// Cleanup has nothing to release: the repository working copy is the
// canonical storage for the codebase and is kept for the next job; neither
// GIT_SYNC nor the CLEANUP task removes it.
func (t *Task) Cleanup(context.Context, *tasks.JobContext) error {
	return nil
}

func bucketChanges(result *Result, changes []gitclient.FileChange) {
	for _, c := range changes {
		switch c.Status {
		case "A":
			result.FilesAdded = append(result.FilesAdded, c.Path)
		case "M":
			result.FilesChanged = append(result.FilesChanged, c.Path)
		case "D":
			result.FilesDeleted = append(result.FilesDeleted, c.Path)
		case "R":
			result.FilesDeleted = append(result.FilesDeleted, c.OldPath)
			result.FilesAdded = append(result.FilesAdded, c.Path)
		}
	}
}

func resolveAuthToken(cfg config.GitSyncConfig) string {
	if cfg.AuthTokenEnv == "" {
		return ""
	}

	return os.Getenv(cfg.AuthTokenEnv)
}
