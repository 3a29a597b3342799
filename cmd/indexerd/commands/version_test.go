package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/indexer/pkg/version"
)

func TestVersionCommand_PrintsVersionCommitAndDate(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), version.Version)
	assert.Contains(t, out.String(), version.Commit)
	assert.Contains(t, out.String(), version.Date)
}
