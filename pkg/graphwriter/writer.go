// Package graphwriter connects to the graph database and performs ordered,
// idempotent batched upserts of a NormalizedGraph: nodes first, then
// relationships, with deletes handled as their own cascading transaction.
package graphwriter

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
	"github.com/codegraph-dev/indexer/pkg/safeconv"
)

// Batch processing defaults, grounded on the same shape as a batch-size
// config struct: a handful of named int defaults plus one override point.
const (
	defaultBatchSize                    = 100
	defaultMaxConnectionPoolSize        = 50
	defaultMaxConnectionLifetime        = 30 * time.Minute
	defaultConnectionAcquisitionTimeout = 60 * time.Second
)

// Config configures the pooled connection to the graph database.
type Config struct {
	URI      string
	Username string
	Password string

	BatchSize int

	MaxConnectionPoolSize        int
	MaxConnectionLifetime        time.Duration
	ConnectionAcquisitionTimeout time.Duration

	// DryRun, when true, logs the batches a write would perform without
	// executing any Cypher against the database.
	DryRun bool
}

// DefaultConfig returns Config with every batch/pool field at its spec default.
func DefaultConfig(uri, username, password string) Config {
	return Config{
		URI:                          uri,
		Username:                     username,
		Password:                     password,
		BatchSize:                    defaultBatchSize,
		MaxConnectionPoolSize:        defaultMaxConnectionPoolSize,
		MaxConnectionLifetime:        defaultMaxConnectionLifetime,
		ConnectionAcquisitionTimeout: defaultConnectionAcquisitionTimeout,
	}
}

// Stats summarizes one write's effect on the graph, matching the
// GRAPH_UPDATE task output contract.
type Stats struct {
	NodesCreated         int
	NodesUpdated         int
	RelationshipsCreated int
	NodesDeleted         int
	RelationshipsDeleted int
}

// Writer performs idempotent batched writes against the graph database.
type Writer struct {
	driver    neo4j.DriverWithContext
	batchSize int
	dryRun    bool
}

// New connects to the graph database with a bounded pool per cfg.
func New(cfg Config) (*Writer, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
		},
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, "graphwriter.New", "DRIVER_INIT_FAILED", err, "connect to graph database at %s", cfg.URI)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Writer{driver: driver, batchSize: batchSize, dryRun: cfg.DryRun}, nil
}

// Close releases the pooled connection.
func (w *Writer) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

// Ping verifies the graph database connection is reachable, for use as a
// readiness check.
func (w *Writer) Ping(ctx context.Context) error {
	if w.dryRun {
		return nil
	}

	return w.driver.VerifyConnectivity(ctx)
}

// EnsureSchema creates the uniqueness constraints and indexes the writer
// depends on for idempotent MERGE-based upserts. Safe to call repeatedly;
// Neo4j's CREATE CONSTRAINT/INDEX IF NOT EXISTS is itself idempotent.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if w.dryRun {
		return nil
	}

	statements := []string{
		"CREATE CONSTRAINT project_id IF NOT EXISTS FOR (n:Project) REQUIRE n.projectId IS UNIQUE",
		"CREATE CONSTRAINT codebase_id IF NOT EXISTS FOR (n:Codebase) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT class_id IF NOT EXISTS FOR (n:Class) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT method_id IF NOT EXISTS FOR (n:Method) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT interface_id IF NOT EXISTS FOR (n:Interface) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT api_endpoint_id IF NOT EXISTS FOR (n:APIEndpoint) REQUIRE n.id IS UNIQUE",
		"CREATE INDEX file_path IF NOT EXISTS FOR (n:File) ON (n.path)",
		"CREATE INDEX class_name IF NOT EXISTS FOR (n:Class) ON (n.name)",
		"CREATE INDEX method_name IF NOT EXISTS FOR (n:Method) ON (n.name)",
		"CREATE INDEX class_fqn IF NOT EXISTS FOR (n:Class) ON (n.fullyQualifiedName)",
	}

	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return errs.Wrap(errs.KindTransport, "graphwriter.EnsureSchema", "SCHEMA_SETUP_FAILED", err, "run %q", stmt)
		}
	}

	return nil
}

// WriteGraph upserts graph's nodes, then its relationships, in ordered
// batches of w.batchSize. Each batch runs inside one transaction; on
// failure the transaction rolls back and the error is returned to the
// caller's retry loop.
func (w *Writer) WriteGraph(ctx context.Context, codebase string, graph *graphmodel.NormalizedGraph) (Stats, error) {
	var stats Stats

	for _, batch := range chunkNodes(graph.Nodes, w.batchSize) {
		created, err := w.writeNodeBatch(ctx, codebase, batch)
		if err != nil {
			return stats, err
		}

		stats.NodesCreated += created
		stats.NodesUpdated += len(batch) - created
	}

	for _, batch := range chunkRelationships(graph.Relationships, w.batchSize) {
		created, err := w.writeRelationshipBatch(ctx, batch)
		if err != nil {
			return stats, err
		}

		stats.RelationshipsCreated += created
	}

	return stats, nil
}

func (w *Writer) writeNodeBatch(ctx context.Context, codebase string, batch []graphmodel.Node) (int, error) {
	if w.dryRun {
		return len(batch), nil
	}

	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		created := 0

		for _, n := range batch {
			label := string(n.Type)
			query := fmt.Sprintf(
				"MERGE (n:%s {id: $id}) ON CREATE SET n += $props, n.createdInBatch = true "+
					"ON MATCH SET n += $props, n.createdInBatch = false "+
					"RETURN n.createdInBatch AS created", label)

			params := map[string]any{"id": n.ID, "props": withCodebaseScope(codebase, n.Properties)}

			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}

			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}

			wasCreated, _ := rec.Get("created")
			if b, ok := wasCreated.(bool); ok && b {
				created++
			}
		}

		return created, nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindTransport, "graphwriter.writeNodeBatch", "NODE_BATCH_FAILED", err, "write batch of %d nodes", len(batch))
	}

	count, _ := result.(int)

	return count, nil
}

func (w *Writer) writeRelationshipBatch(ctx context.Context, batch []graphmodel.Relationship) (int, error) {
	if w.dryRun {
		return len(batch), nil
	}

	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		created := 0

		for _, r := range batch {
			query := fmt.Sprintf(
				"MATCH (s {id: $startId}), (e {id: $endId}) "+
					"MERGE (s)-[rel:%s]->(e) ON CREATE SET rel += $props, rel.createdInBatch = true "+
					"ON MATCH SET rel += $props, rel.createdInBatch = false "+
					"RETURN rel.createdInBatch AS created", string(r.Kind))

			params := map[string]any{"startId": r.StartID, "endId": r.EndID, "props": r.Properties}

			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}

			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}

			wasCreated, _ := rec.Get("created")
			if b, ok := wasCreated.(bool); ok && b {
				created++
			}
		}

		return created, nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindTransport, "graphwriter.writeRelationshipBatch", "REL_BATCH_FAILED", err,
			"write batch of %d relationships", len(batch))
	}

	count, _ := result.(int)

	return count, nil
}

// DeleteFiles removes the given File nodes and every node reachable only
// through DEFINES_CLASS/DEFINES_METHOD from them, together with incident
// relationships, in a single transaction per codebase.
func (w *Writer) DeleteFiles(ctx context.Context, codebase string, filePaths []string) (Stats, error) {
	var stats Stats

	if len(filePaths) == 0 || w.dryRun {
		return stats, nil
	}

	ids := make([]string, 0, len(filePaths))
	for _, p := range filePaths {
		ids = append(ids, graphmodel.FileID(codebase, p))
	}

	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:File) WHERE f.id IN $ids
			OPTIONAL MATCH (f)-[:DEFINES_CLASS|DEFINES_METHOD*1..2]->(owned)
			WITH collect(DISTINCT f) + collect(DISTINCT owned) AS doomed
			UNWIND doomed AS n
			WITH DISTINCT n WHERE n IS NOT NULL
			DETACH DELETE n
			RETURN count(n) AS deleted`

		res, err := tx.Run(ctx, query, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}

		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}

		deleted, _ := rec.Get("deleted")

		return deleted, nil
	})
	if err != nil {
		return stats, errs.Wrap(errs.KindTransport, "graphwriter.DeleteFiles", "DELETE_FAILED", err, "delete %d files for %s", len(filePaths), codebase)
	}

	if n, ok := result.(int64); ok {
		stats.NodesDeleted = safeconv.MustInt64ToInt(n)
	}

	return stats, nil
}

func withCodebaseScope(codebase string, props map[string]any) map[string]any {
	scoped := make(map[string]any, len(props)+1)
	for k, v := range props {
		scoped[k] = v
	}

	scoped["codebase"] = codebase

	return scoped
}

func chunkNodes(nodes []graphmodel.Node, size int) [][]graphmodel.Node {
	var batches [][]graphmodel.Node

	for i := 0; i < len(nodes); i += size {
		end := min(i+size, len(nodes))
		batches = append(batches, nodes[i:end])
	}

	return batches
}

func chunkRelationships(rels []graphmodel.Relationship, size int) [][]graphmodel.Relationship {
	var batches [][]graphmodel.Relationship

	for i := 0; i < len(rels); i += size {
		end := min(i+size, len(rels))
		batches = append(batches, rels[i:end])
	}

	return batches
}
