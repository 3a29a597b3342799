// Package graphupdate implements the GRAPH_UPDATE task: write normalized
// per-language graphs and process incremental deletes against the graph
// database.
package graphupdate

import (
	"context"
	"time"

	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/internal/tasks/codeparsing"
	"github.com/codegraph-dev/indexer/internal/tasks/gitsync"
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
	"github.com/codegraph-dev/indexer/pkg/graphwriter"
)

// Result is the GRAPH_UPDATE output: the combined write stats across every
// language graph written plus any incremental deletes.
type Result struct {
	Stats graphwriter.Stats
}

// Writer abstracts the graph writer so tests can stub it.
type Writer interface {
	WriteGraph(ctx context.Context, codebase string, graph *graphmodel.NormalizedGraph) (graphwriter.Stats, error)
	DeleteFiles(ctx context.Context, codebase string, filePaths []string) (graphwriter.Stats, error)
}

// Task implements tasks.Task for GRAPH_UPDATE.
type Task struct {
	writer Writer
}

// New constructs the GRAPH_UPDATE task.
func New(writer Writer) *Task {
	return &Task{writer: writer}
}

func (t *Task) Name() tasks.Name               { return tasks.GraphUpdate }
func (t *Task) RequiredUpstream() []tasks.Name { return []tasks.Name{tasks.GitSync} }
func (t *Task) OptionalUpstream() []tasks.Name { return []tasks.Name{tasks.CodeParsing} }

func (t *Task) Timeout(jc *tasks.JobContext) time.Duration {
	return jc.Config.GraphUpdate.Timeout
}

func (t *Task) Retries(jc *tasks.JobContext) int {
	return jc.Config.GraphUpdate.Retries
}

func (t *Task) EstimatedDuration() time.Duration { return time.Minute }

// ShouldRun gates on CODE_PARSING having produced at least one language
// graph, or on GIT_SYNC having reported files to delete.
func (t *Task) ShouldRun(_ context.Context, jc *tasks.JobContext) (bool, error) {
	if parsingResult, ok := codeParsingResult(jc); ok && len(parsingResult.Graphs) > 0 {
		return true, nil
	}

	syncResult, ok := gitSyncResult(jc)
	if !ok {
		return false, errs.New(errs.KindState, "graphupdate.ShouldRun", "MISSING_UPSTREAM_RESULT",
			"GIT_SYNC result not found in job context", nil)
	}

	return len(syncResult.FilesDeleted) > 0, nil
}

// Validate checks the batch size configured for graph writes.
func (t *Task) Validate(_ context.Context, jc *tasks.JobContext) error {
	if jc.Config.GraphUpdate.BatchSize <= 0 {
		return errs.New(errs.KindConfig, "graphupdate.Validate", "BATCH_SIZE_INVALID",
			"graph_update.batch_size must be positive", nil)
	}

	return nil
}

// Execute writes every parsed language graph in configured batches, then
// deletes files GIT_SYNC reported removed (and their owned classes/methods).
func (t *Task) Execute(ctx context.Context, jc *tasks.JobContext) (any, error) {
	var combined graphwriter.Stats

	if parsingResult, ok := codeParsingResult(jc); ok {
		for _, graph := range parsingResult.Graphs {
			stats, err := t.writer.WriteGraph(ctx, jc.Codebase.Name, graph)
			if err != nil {
				return nil, err
			}

			combined = mergeStats(combined, stats)
		}
	}

	if syncResult, ok := gitSyncResult(jc); ok && len(syncResult.FilesDeleted) > 0 {
		stats, err := t.writer.DeleteFiles(ctx, jc.Codebase.Name, syncResult.FilesDeleted)
		if err != nil {
			return nil, err
		}

		combined = mergeStats(combined, stats)
	}

	return Result{Stats: combined}, nil
}

// Cleanup has nothing to release: the writer's connection pool is shared
// across jobs and owned by the process, not the task.
func (t *Task) Cleanup(context.Context, *tasks.JobContext) error {
	return nil
}

func mergeStats(a, b graphwriter.Stats) graphwriter.Stats {
	return graphwriter.Stats{
		NodesCreated:         a.NodesCreated + b.NodesCreated,
		NodesUpdated:         a.NodesUpdated + b.NodesUpdated,
		RelationshipsCreated: a.RelationshipsCreated + b.RelationshipsCreated,
		NodesDeleted:         a.NodesDeleted + b.NodesDeleted,
		RelationshipsDeleted: a.RelationshipsDeleted + b.RelationshipsDeleted,
	}
}

func codeParsingResult(jc *tasks.JobContext) (codeparsing.Result, bool) {
	v, ok := jc.Get(tasks.CodeParsing)
	if !ok {
		return codeparsing.Result{}, false
	}

	result, ok := v.(codeparsing.Result)

	return result, ok
}

func gitSyncResult(jc *tasks.JobContext) (gitsync.Result, bool) {
	v, ok := jc.Get(tasks.GitSync)
	if !ok {
		return gitsync.Result{}, false
	}

	result, ok := v.(gitsync.Result)

	return result, ok
}
