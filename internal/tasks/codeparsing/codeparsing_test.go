package codeparsing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/internal/config"
	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/internal/tasks/codeparsing"
	"github.com/codegraph-dev/indexer/internal/tasks/gitsync"
	"github.com/codegraph-dev/indexer/pkg/containerdriver"
	"github.com/codegraph-dev/indexer/pkg/parserspec"
	"github.com/codegraph-dev/indexer/pkg/storage"
)

var assertAnyError = errors.New("container run failed")

type stubRunner struct {
	responses map[string]map[string]any
	err       error
	calls     []containerdriver.RunRequest
}

func (s *stubRunner) Run(_ context.Context, req containerdriver.RunRequest) (map[string]any, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}

	return s.responses[req.Image], nil
}

func newFacade(t *testing.T) *storage.Facade {
	t.Helper()

	facade, err := storage.New(t.TempDir())
	require.NoError(t, err)

	return facade
}

func newJobContext(t *testing.T, syncResult gitsync.Result) *tasks.JobContext {
	t.Helper()

	cfg := &config.Config{
		CodeParsing: config.CodeParsingConfig{
			Timeout:   config.DefaultCodeParsingTimeout,
			Retries:   config.DefaultCodeParsingRetries,
			Languages: []string{"Java", "TypeScript", "JavaScript"},
		},
	}

	jc := tasks.NewJobContext("job-1", tasks.JobIncremental, tasks.CodebaseRef{ID: "cb-1", Name: "cb-1"}, "base", cfg, nil)
	jc.Set(tasks.GitSync, syncResult)

	return jc
}

func javaParserOutput() map[string]any {
	return map[string]any{
		"files": []any{
			map[string]any{"path": "Foo.java", "filename": "Foo.java", "checksum": "abc", "lineCount": 10.0},
		},
	}
}

func TestTask_ShouldRunFalseWhenNoFilesChanged(t *testing.T) {
	t.Parallel()

	task := codeparsing.New(newFacade(t), &stubRunner{})
	jc := newJobContext(t, gitsync.Result{})

	should, err := task.ShouldRun(context.Background(), jc)
	require.NoError(t, err)
	assert.False(t, should)
}

func TestTask_ShouldRunTrueWhenFilesAdded(t *testing.T) {
	t.Parallel()

	task := codeparsing.New(newFacade(t), &stubRunner{})
	jc := newJobContext(t, gitsync.Result{FilesAdded: []string{"Foo.java"}})

	should, err := task.ShouldRun(context.Background(), jc)
	require.NoError(t, err)
	assert.True(t, should)
}

func TestTask_ShouldRunErrorsWithoutUpstreamResult(t *testing.T) {
	t.Parallel()

	task := codeparsing.New(newFacade(t), &stubRunner{})
	jc := tasks.NewJobContext("job-1", tasks.JobFull, tasks.CodebaseRef{ID: "cb-1"}, "", &config.Config{}, nil)

	_, err := task.ShouldRun(context.Background(), jc)
	require.Error(t, err)
}

func TestTask_ValidateRejectsAllUnsupportedLanguages(t *testing.T) {
	t.Parallel()

	task := codeparsing.New(newFacade(t), &stubRunner{})
	jc := newJobContext(t, gitsync.Result{})
	jc.Config.CodeParsing.Languages = []string{"COBOL"}

	require.Error(t, task.Validate(context.Background(), jc))
}

func TestTask_ExecuteParsesJavaFileAndNormalizes(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{responses: map[string]map[string]any{
		"codegraph/parser-java:latest": javaParserOutput(),
	}}

	task := codeparsing.New(newFacade(t), runner)
	jc := newJobContext(t, gitsync.Result{FilesAdded: []string{"Foo.java"}})

	out, err := task.Execute(context.Background(), jc)
	require.NoError(t, err)

	result, ok := out.(codeparsing.Result)
	require.True(t, ok)
	require.Contains(t, result.Graphs, parserspec.LanguageJava)

	graph := result.Graphs[parserspec.LanguageJava]
	assert.NotEmpty(t, graph.Nodes)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "cb-1", runner.calls[0].CodebaseName)
	assert.Equal(t, "JAVA_OPTS", runner.calls[0].RuntimeEnvVar)
}

func TestTask_ExecuteFailsWhenEveryLanguageFails(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: assertAnyError}

	task := codeparsing.New(newFacade(t), runner)
	jc := newJobContext(t, gitsync.Result{FilesAdded: []string{"Foo.java"}})

	_, err := task.Execute(context.Background(), jc)
	require.Error(t, err)
}

func TestTask_TimeoutFromConfig(t *testing.T) {
	t.Parallel()

	task := codeparsing.New(newFacade(t), &stubRunner{})
	jc := newJobContext(t, gitsync.Result{})
	jc.Config.CodeParsing.Timeout = 42 * time.Second

	assert.Equal(t, 42*time.Second, task.Timeout(jc))
}
