package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricJobsStarted    = "indexerd.jobs.started.total"
	metricJobsSucceeded  = "indexerd.jobs.succeeded.total"
	metricJobsFailed     = "indexerd.jobs.failed.total"
	metricTaskDuration   = "indexerd.task.duration.seconds"
	metricFilesProcessed = "indexerd.files.processed.total"
	metricNodesWritten   = "indexerd.graph.nodes.total"
	metricRelsWritten    = "indexerd.graph.relationships.total"

	attrJobType  = "job_type"
	attrTaskName = "task"
	attrOutcome  = "outcome"
)

// PipelineMetrics holds OTel instruments for job/task pipeline metrics.
type PipelineMetrics struct {
	jobsStarted    metric.Int64Counter
	jobsSucceeded  metric.Int64Counter
	jobsFailed     metric.Int64Counter
	taskDuration   metric.Float64Histogram
	filesProcessed metric.Int64Counter
	nodesWritten   metric.Int64Counter
	relsWritten    metric.Int64Counter
}

// JobRunStats holds the statistics for a single task's run within a job,
// decoupled from orchestrator types.
type JobRunStats struct {
	JobType              string
	TaskName             string
	TaskDurationSeconds  float64
	FilesAdded           int
	FilesChanged         int
	FilesDeleted         int
	NodesCreated         int
	NodesUpdated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
}

// NewPipelineMetrics creates job/task pipeline metric instruments from mt.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		jobsStarted:    b.counter(metricJobsStarted, "Total jobs started", "{job}"),
		jobsSucceeded:  b.counter(metricJobsSucceeded, "Total jobs that finished successfully", "{job}"),
		jobsFailed:     b.counter(metricJobsFailed, "Total jobs that finished with a failure", "{job}"),
		taskDuration:   b.histogram(metricTaskDuration, "Per-task execution duration in seconds", "s", durationBucketBoundaries...),
		filesProcessed: b.counter(metricFilesProcessed, "Files added, changed, or deleted by a GIT_SYNC task", "{file}"),
		nodesWritten:   b.counter(metricNodesWritten, "Graph nodes created, updated, or deleted by a GRAPH_UPDATE task", "{node}"),
		relsWritten:    b.counter(metricRelsWritten, "Graph relationships created or deleted by a GRAPH_UPDATE task", "{relationship}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordJobStart increments the jobs-started counter for jobType.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordJobStart(ctx context.Context, jobType string) {
	if pm == nil {
		return
	}

	pm.jobsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String(attrJobType, jobType)))
}

// RecordJobOutcome increments the succeeded or failed counter for jobType.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordJobOutcome(ctx context.Context, jobType string, succeeded bool) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrJobType, jobType))
	if succeeded {
		pm.jobsSucceeded.Add(ctx, 1, attrs)
	} else {
		pm.jobsFailed.Add(ctx, 1, attrs)
	}
}

// RecordTaskRun records duration, file-change, and graph-write statistics
// for one task's run. Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordTaskRun(ctx context.Context, stats JobRunStats) {
	if pm == nil {
		return
	}

	taskAttrs := metric.WithAttributes(
		attribute.String(attrJobType, stats.JobType),
		attribute.String(attrTaskName, stats.TaskName),
	)

	pm.taskDuration.Record(ctx, stats.TaskDurationSeconds, taskAttrs)

	pm.filesProcessed.Add(ctx, int64(stats.FilesAdded), metric.WithAttributes(attribute.String(attrOutcome, "added")))
	pm.filesProcessed.Add(ctx, int64(stats.FilesChanged), metric.WithAttributes(attribute.String(attrOutcome, "changed")))
	pm.filesProcessed.Add(ctx, int64(stats.FilesDeleted), metric.WithAttributes(attribute.String(attrOutcome, "deleted")))

	pm.nodesWritten.Add(ctx, int64(stats.NodesCreated), metric.WithAttributes(attribute.String(attrOutcome, "created")))
	pm.nodesWritten.Add(ctx, int64(stats.NodesUpdated), metric.WithAttributes(attribute.String(attrOutcome, "updated")))
	pm.nodesWritten.Add(ctx, int64(stats.NodesDeleted), metric.WithAttributes(attribute.String(attrOutcome, "deleted")))

	pm.relsWritten.Add(ctx, int64(stats.RelationshipsCreated), metric.WithAttributes(attribute.String(attrOutcome, "created")))
	pm.relsWritten.Add(ctx, int64(stats.RelationshipsDeleted), metric.WithAttributes(attribute.String(attrOutcome, "deleted")))
}
