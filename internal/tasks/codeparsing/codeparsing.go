// Package codeparsing implements the CODE_PARSING task: dispatch changed
// files to per-language container parsers and normalize their output into
// the canonical graph schema.
package codeparsing

import (
	"context"
	"fmt"
	"time"

	"github.com/codegraph-dev/indexer/internal/tasks"
	"github.com/codegraph-dev/indexer/internal/tasks/gitsync"
	"github.com/codegraph-dev/indexer/pkg/containerdriver"
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
	"github.com/codegraph-dev/indexer/pkg/normalize"
	"github.com/codegraph-dev/indexer/pkg/parserspec"
	"github.com/codegraph-dev/indexer/pkg/storage"
)

// Result is the CODE_PARSING output: one normalized graph per language
// that produced output.
type Result struct {
	Graphs map[parserspec.Language]*graphmodel.NormalizedGraph
}

// Runner abstracts the container parser driver so tests can stub it.
type Runner interface {
	Run(ctx context.Context, req containerdriver.RunRequest) (map[string]any, error)
}

// Task implements tasks.Task for CODE_PARSING.
type Task struct {
	storage    *storage.Facade
	driver     Runner
	normalizer map[parserspec.Language]normalize.Normalizer
}

// New constructs the CODE_PARSING task. storage scopes where the container
// driver's output JSON lands before normalization.
func New(store *storage.Facade, driver Runner) *Task {
	return &Task{
		storage: store,
		driver:  driver,
		normalizer: map[parserspec.Language]normalize.Normalizer{
			parserspec.LanguageJava:       normalize.JavaNormalizer{},
			parserspec.LanguageTypeScript: normalize.TypeScriptNormalizer{},
			parserspec.LanguageJavaScript: normalize.TypeScriptNormalizer{},
		},
	}
}

func (t *Task) Name() tasks.Name               { return tasks.CodeParsing }
func (t *Task) RequiredUpstream() []tasks.Name { return []tasks.Name{tasks.GitSync} }
func (t *Task) OptionalUpstream() []tasks.Name { return nil }

func (t *Task) Timeout(jc *tasks.JobContext) time.Duration {
	return jc.Config.CodeParsing.Timeout
}

func (t *Task) Retries(jc *tasks.JobContext) int {
	return jc.Config.CodeParsing.Retries
}

func (t *Task) EstimatedDuration() time.Duration { return 2 * time.Minute }

// ShouldRun gates on GIT_SYNC having added or changed at least one file.
func (t *Task) ShouldRun(_ context.Context, jc *tasks.JobContext) (bool, error) {
	syncResult, ok := gitSyncResult(jc)
	if !ok {
		return false, errs.New(errs.KindState, "codeparsing.ShouldRun", "MISSING_UPSTREAM_RESULT",
			"GIT_SYNC result not found in job context", nil)
	}

	return len(syncResult.FilesAdded)+len(syncResult.FilesChanged) > 0, nil
}

// Validate checks that at least one configured language is supported.
func (t *Task) Validate(_ context.Context, jc *tasks.JobContext) error {
	for _, lang := range jc.Config.CodeParsing.Languages {
		if parserspec.IsSupported(parserspec.Language(lang)) {
			return nil
		}
	}

	return errs.New(errs.KindConfig, "codeparsing.Validate", "NO_SUPPORTED_LANGUAGES",
		"code_parsing.languages contains no supported language", nil)
}

// Execute groups changed files by language, runs the container parser per
// language, and normalizes each result. A per-language failure is logged
// and that language is skipped; the task succeeds if any language produced
// a graph.
func (t *Task) Execute(ctx context.Context, jc *tasks.JobContext) (any, error) {
	syncResult, _ := gitSyncResult(jc)

	byLanguage := t.groupByLanguage(jc, append(syncResult.FilesAdded, syncResult.FilesChanged...), jc.Config.CodeParsing.Languages)

	result := Result{Graphs: make(map[parserspec.Language]*graphmodel.NormalizedGraph)}

	var lastErr error

	for lang, files := range byLanguage {
		if len(files) == 0 {
			continue
		}

		graph, err := t.parseLanguage(ctx, jc, lang)
		if err != nil {
			jc.Logger.Warn("language parse failed, skipping", "language", lang, "error", err)
			lastErr = err

			continue
		}

		result.Graphs[lang] = graph
	}

	if len(result.Graphs) == 0 {
		if lastErr == nil {
			lastErr = errs.New(errs.KindParse, "codeparsing.Execute", "NO_LANGUAGES_PARSED",
				"no configured language produced parser output", nil)
		}

		return nil, lastErr
	}

	return result, nil
}

// Cleanup has nothing to remove: the container driver deletes each parser
// output file after reading it, and the CLEANUP task removes the job's temp
// scratch directory.
func (t *Task) Cleanup(context.Context, *tasks.JobContext) error {
	return nil
}

func (t *Task) parseLanguage(ctx context.Context, jc *tasks.JobContext, lang parserspec.Language) (*graphmodel.NormalizedGraph, error) {
	spec, err := parserspec.ParserSpecFor(lang)
	if err != nil {
		return nil, err
	}

	runtimeOptions := spec.RuntimeOptions
	if overrides, ok := jc.Config.CodeParsing.RuntimeOptions[string(lang)]; ok && len(overrides) > 0 {
		runtimeOptions = overrides
	}

	outputPath := t.storage.TempPath(jc.JobID, fmt.Sprintf("%s-parser-output.json", lang))

	raw, err := t.driver.Run(ctx, containerdriver.RunRequest{
		Image:          spec.Image,
		CodebaseName:   jc.Codebase.Name,
		SourcePath:     jc.Codebase.StoragePath,
		OutputPath:     outputPath,
		RuntimeEnvVar:  spec.EnvVar,
		RuntimeOptions: runtimeOptions,
		Timeout:        jc.Config.CodeParsing.Timeout,
	})
	if err != nil {
		return nil, err
	}

	normalizer, ok := t.normalizer[lang]
	if !ok {
		return nil, errs.New(errs.KindConfig, "codeparsing.parseLanguage", "NO_NORMALIZER", "no normalizer registered for "+string(lang), nil)
	}

	return normalizer.Normalize(jc.Codebase.Name, raw)
}

// groupByLanguage tags every file by detected language and buckets it,
// dropping files whose language is not among the configured/enabled set.
// Extensionless or ambiguous files fall back to content-based detection by
// reading the file from the codebase working copy.
func (t *Task) groupByLanguage(jc *tasks.JobContext, files []string, enabled []string) map[parserspec.Language][]string {
	enabledSet := make(map[parserspec.Language]bool, len(enabled))
	for _, lang := range enabled {
		enabledSet[parserspec.Language(lang)] = true
	}

	out := make(map[parserspec.Language][]string)

	for _, file := range files {
		lang := parserspec.DetectLanguage(file, nil)
		if lang == "" {
			content, err := t.storage.ReadFile(t.storage.CodebasePath(jc.Codebase.ID, file))
			if err == nil {
				lang = parserspec.DetectLanguage(file, content)
			}
		}

		if lang == "" || !enabledSet[lang] || !parserspec.IsSupported(lang) {
			continue
		}

		out[lang] = append(out[lang], file)
	}

	return out
}

func gitSyncResult(jc *tasks.JobContext) (gitsync.Result, bool) {
	v, ok := jc.Get(tasks.GitSync)
	if !ok {
		return gitsync.Result{}, false
	}

	result, ok := v.(gitsync.Result)

	return result, ok
}
