package parserspec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/parserspec"
)

func TestParserSpecFor(t *testing.T) {
	t.Parallel()

	spec, err := parserspec.ParserSpecFor(parserspec.LanguageJava)
	require.NoError(t, err)
	assert.Equal(t, "codegraph/parser-java:latest", spec.Image)
	assert.Equal(t, "JAVA_OPTS", spec.EnvVar)

	_, err = parserspec.ParserSpecFor(parserspec.Language("COBOL"))
	require.Error(t, err)

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindConfig, kind)
}

func TestIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, parserspec.IsSupported(parserspec.LanguageJava))
	assert.True(t, parserspec.IsSupported(parserspec.LanguageTypeScript))
	assert.False(t, parserspec.IsSupported(parserspec.Language("COBOL")))
}

func TestDetectLanguageExtensionFastPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, parserspec.LanguageJava, parserspec.DetectLanguage("App.java", nil))
	assert.Equal(t, parserspec.LanguageTypeScript, parserspec.DetectLanguage("index.ts", nil))
	assert.Equal(t, parserspec.LanguageTypeScript, parserspec.DetectLanguage("component.tsx", nil))
	assert.Equal(t, parserspec.LanguageJavaScript, parserspec.DetectLanguage("main.js", nil))
}

func TestDetectLanguageContentFallback(t *testing.T) {
	t.Parallel()

	content := []byte("#!/usr/bin/env python3\nprint('hello')\n")
	lang := parserspec.DetectLanguage("script", content)
	assert.Equal(t, parserspec.Language("Python"), lang)
}

func TestDetectLanguageUnrecognized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, parserspec.Language(""), parserspec.DetectLanguage("", nil))
}
