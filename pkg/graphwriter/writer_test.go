package graphwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/indexer/pkg/graphmodel"
)

func TestDefaultConfigAppliesBatchAndPoolDefaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig("bolt://localhost:7687", "neo4j", "secret")

	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
	assert.Equal(t, defaultMaxConnectionPoolSize, cfg.MaxConnectionPoolSize)
	assert.Equal(t, defaultMaxConnectionLifetime, cfg.MaxConnectionLifetime)
	assert.Equal(t, defaultConnectionAcquisitionTimeout, cfg.ConnectionAcquisitionTimeout)
}

func TestChunkNodesSplitsIntoOrderedBatches(t *testing.T) {
	t.Parallel()

	nodes := make([]graphmodel.Node, 0, 250)
	for i := 0; i < 250; i++ {
		nodes = append(nodes, graphmodel.Node{ID: graphmodel.FileID("demo", string(rune('a'+i%26)))})
	}

	batches := chunkNodes(nodes, 100)

	if assert.Len(t, batches, 3) {
		assert.Len(t, batches[0], 100)
		assert.Len(t, batches[1], 100)
		assert.Len(t, batches[2], 50)
	}
}

func TestChunkNodesEmptyInputProducesNoBatches(t *testing.T) {
	t.Parallel()

	assert.Empty(t, chunkNodes(nil, 100))
}

func TestChunkRelationshipsSplitsIntoOrderedBatches(t *testing.T) {
	t.Parallel()

	rels := make([]graphmodel.Relationship, 0, 150)
	for i := 0; i < 150; i++ {
		rels = append(rels, graphmodel.Relationship{Kind: graphmodel.RelCalls})
	}

	batches := chunkRelationships(rels, 100)

	if assert.Len(t, batches, 2) {
		assert.Len(t, batches[0], 100)
		assert.Len(t, batches[1], 50)
	}
}

func TestWithCodebaseScopeAddsCodebaseWithoutMutatingInput(t *testing.T) {
	t.Parallel()

	original := map[string]any{"name": "App"}

	scoped := withCodebaseScope("demo", original)

	assert.Equal(t, "demo", scoped["codebase"])
	assert.Equal(t, "App", scoped["name"])
	_, hasCodebase := original["codebase"]
	assert.False(t, hasCodebase, "withCodebaseScope must not mutate its input map")
}

func TestNewRejectsEmptyBatchSizeByFallingBackToDefault(t *testing.T) {
	t.Parallel()

	w, err := New(Config{URI: "bolt://localhost:7687", Username: "neo4j", Password: "secret"})
	if err != nil {
		// No live driver target in this environment; the constructor's
		// validation/default-filling path is still what's under test, so a
		// connection error here is not this test's concern.
		t.Skipf("skipping: driver construction requires network resolution: %v", err)
	}

	assert.Equal(t, defaultBatchSize, w.batchSize)
}
