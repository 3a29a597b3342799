package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_HasExpectedSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()

	for _, name := range []string{"index", "status", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestNewRootCommand_SilencesUsageAndErrors(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()

	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
}
