package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/codegraph-dev/indexer/internal/observability"
)

func setupPipelineMeter(t *testing.T) (*observability.PipelineMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	pm, err := observability.NewPipelineMetrics(meter)
	require.NoError(t, err)

	return pm, reader
}

func TestNewPipelineMetrics(t *testing.T) {
	t.Parallel()

	pm, _ := setupPipelineMeter(t)
	assert.NotNil(t, pm)
}

func TestPipelineMetrics_RecordJobStartAndOutcome(t *testing.T) {
	t.Parallel()

	pm, reader := setupPipelineMeter(t)
	ctx := context.Background()

	pm.RecordJobStart(ctx, "full")
	pm.RecordJobOutcome(ctx, "full", true)

	rm := collectMetrics(t, reader)

	started := findMetric(rm, "indexerd.jobs.started.total")
	require.NotNil(t, started, "jobs-started counter should exist")

	succeeded := findMetric(rm, "indexerd.jobs.succeeded.total")
	require.NotNil(t, succeeded, "jobs-succeeded counter should exist")
}

func TestPipelineMetrics_RecordTaskRun(t *testing.T) {
	t.Parallel()

	pm, reader := setupPipelineMeter(t)
	ctx := context.Background()

	pm.RecordTaskRun(ctx, observability.JobRunStats{
		JobType:              "incremental",
		TaskName:             "GRAPH_UPDATE",
		TaskDurationSeconds:  2.5,
		FilesAdded:           3,
		FilesChanged:         2,
		FilesDeleted:         1,
		NodesCreated:         40,
		NodesUpdated:         10,
		NodesDeleted:         2,
		RelationshipsCreated: 60,
		RelationshipsDeleted: 5,
	})

	rm := collectMetrics(t, reader)

	duration := findMetric(rm, "indexerd.task.duration.seconds")
	require.NotNil(t, duration, "task duration histogram should exist")

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	files := findMetric(rm, "indexerd.files.processed.total")
	require.NotNil(t, files, "files-processed counter should exist")

	nodes := findMetric(rm, "indexerd.graph.nodes.total")
	require.NotNil(t, nodes, "nodes-written counter should exist")

	rels := findMetric(rm, "indexerd.graph.relationships.total")
	require.NotNil(t, rels, "relationships-written counter should exist")
}

func TestPipelineMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var pm *observability.PipelineMetrics

	pm.RecordJobStart(context.Background(), "full")
	pm.RecordJobOutcome(context.Background(), "full", false)
	pm.RecordTaskRun(context.Background(), observability.JobRunStats{JobType: "full", TaskName: "CLEANUP"})
}
