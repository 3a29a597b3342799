package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/internal/catalog"
	"github.com/codegraph-dev/indexer/internal/jobs"
)

func TestCatalog_RegisterThenResolve(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	codebase := jobs.Codebase{ID: "cb1", Name: "demo", RemoteURL: "https://example.com/demo.git", DefaultBranch: "main"}
	require.NoError(t, c.Register(codebase))

	got, err := c.Resolve(context.Background(), "cb1")
	require.NoError(t, err)
	assert.Equal(t, codebase, got)
}

func TestCatalog_ResolveUnknownReturnsError(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	_, err = c.Resolve(context.Background(), "missing")
	require.Error(t, err)
}

func TestCatalog_RecordIndexedUpdatesCommit(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	require.NoError(t, c.Register(jobs.Codebase{ID: "cb1", Name: "demo"}))
	require.NoError(t, c.RecordIndexed(context.Background(), "cb1", "deadbeef"))

	got, err := c.Resolve(context.Background(), "cb1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got.LastIndexedCommit)
}

func TestCatalog_RecordIndexedUnknownReturnsError(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	err = c.RecordIndexed(context.Background(), "missing", "deadbeef")
	require.Error(t, err)
}

func TestCatalog_RegisterPreservesLastIndexedCommitWhenNotSupplied(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	require.NoError(t, c.Register(jobs.Codebase{ID: "cb1", Name: "demo"}))
	require.NoError(t, c.RecordIndexed(context.Background(), "cb1", "deadbeef"))

	require.NoError(t, c.Register(jobs.Codebase{ID: "cb1", Name: "demo-renamed"}))

	got, err := c.Resolve(context.Background(), "cb1")
	require.NoError(t, err)
	assert.Equal(t, "demo-renamed", got.Name)
	assert.Equal(t, "deadbeef", got.LastIndexedCommit)
}

func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	c, err := catalog.Open(dir)
	require.NoError(t, err)

	require.NoError(t, c.Register(jobs.Codebase{ID: "cb1", Name: "demo", RemoteURL: "https://example.com/demo.git"}))

	reopened, err := catalog.Open(dir)
	require.NoError(t, err)

	got, err := reopened.Resolve(context.Background(), "cb1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
}

func TestCatalog_ListOrdersByID(t *testing.T) {
	t.Parallel()

	c, err := catalog.Open("")
	require.NoError(t, err)

	require.NoError(t, c.Register(jobs.Codebase{ID: "b", Name: "second"}))
	require.NoError(t, c.Register(jobs.Codebase{ID: "a", Name: "first"}))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}
