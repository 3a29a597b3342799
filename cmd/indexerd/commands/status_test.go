package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/internal/catalog"
	"github.com/codegraph-dev/indexer/internal/jobs"
)

func newTestStatusCommand(t *testing.T, dataDir string) (*StatusCommand, *bytes.Buffer) {
	t.Helper()

	sc := &StatusCommand{dataDir: dataDir}
	out := &bytes.Buffer{}

	return sc, out
}

func TestStatusCommand_EmptyCatalogPrintsHint(t *testing.T) {
	t.Parallel()

	cmd := NewStatusCommand()
	sc, out := newTestStatusCommand(t, t.TempDir())
	cmd.SetOut(out)

	require.NoError(t, sc.run(cmd, nil))
	assert.Contains(t, out.String(), "no codebases registered")
}

func TestStatusCommand_ListsRegisteredCodebases(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()

	cat, err := catalog.Open(filepath.Join(dataDir, "catalog"))
	require.NoError(t, err)
	require.NoError(t, cat.Register(jobs.Codebase{
		ID:                "acme-service",
		Name:              "acme-service",
		RemoteURL:         "git@example.com:acme/service.git",
		DefaultBranch:     "main",
		LastIndexedCommit: "abc123",
	}))

	cmd := NewStatusCommand()
	sc, out := newTestStatusCommand(t, dataDir)
	cmd.SetOut(out)

	require.NoError(t, sc.run(cmd, nil))

	rendered := out.String()
	assert.Contains(t, rendered, "acme-service")
	assert.Contains(t, rendered, "abc123")
	assert.NotContains(t, rendered, "no codebases registered")
}
