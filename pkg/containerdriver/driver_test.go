package containerdriver

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSingleFileFromTar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	content := []byte(`{"nodes":[],"relationships":[]}`)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "parser-output.json",
		Mode: 0o644,
		Size: int64(len(content)),
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	got, err := extractSingleFileFromTar(&buf)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestExtractSingleFileFromTarEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.Close())

	_, err := extractSingleFileFromTar(&buf)
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "org-repo-name", sanitizeName("org/repo name"))
	assert.Equal(t, "host-path", sanitizeName("host:path"))
}
