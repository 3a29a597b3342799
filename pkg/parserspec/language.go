// Package parserspec holds the closed set of supported languages, the
// extension and content-based detection used to tag every file, and the
// lookup table from language to parser image and runtime options that the
// container driver consumes.
package parserspec

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// Language is a detected or configured programming language tag.
type Language string

// The closed set of languages CODE_PARSING can dispatch to a parser image.
// Files in any other detected language are not parsed and produce no
// NormalizedGraph, since no normalizer exists for them.
const (
	LanguageJava       Language = "Java"
	LanguageTypeScript Language = "TypeScript"
	LanguageJavaScript Language = "JavaScript"
)

// SupportedLanguages lists every language with a registered parser image.
//
//nolint:gochecknoglobals // closed constant table.
var SupportedLanguages = []Language{LanguageJava, LanguageTypeScript, LanguageJavaScript}

// ParserSpec is the per-language configuration the container driver needs:
// the image to run and the runtime options passed as environment.
type ParserSpec struct {
	Image          string
	RuntimeOptions []string
	EnvVar         string // e.g. "JAVA_OPTS"; empty when the language's parser takes no runtime env.
}

//nolint:gochecknoglobals // closed constant table, language -> parser image/options.
var parserTable = map[Language]ParserSpec{
	LanguageJava: {
		Image:          "codegraph/parser-java:latest",
		RuntimeOptions: []string{"-Xmx512m", "-XX:+UseSerialGC"},
		EnvVar:         "JAVA_OPTS",
	},
	LanguageTypeScript: {
		Image:          "codegraph/parser-typescript:latest",
		RuntimeOptions: []string{"--max-old-space-size=512"},
		EnvVar:         "NODE_OPTIONS",
	},
	LanguageJavaScript: {
		Image:          "codegraph/parser-typescript:latest",
		RuntimeOptions: []string{"--max-old-space-size=512"},
		EnvVar:         "NODE_OPTIONS",
	},
}

// ParserSpecFor returns the registered parser configuration for lang. The
// error is a SchemaError-flavored ConfigError since an unregistered
// language must be rejected at config-validation time, per the closed
// language-dispatch table.
func ParserSpecFor(lang Language) (ParserSpec, error) {
	spec, ok := parserTable[lang]
	if !ok {
		return ParserSpec{}, errs.New(errs.KindConfig, "parserspec.ParserSpecFor", "UNSUPPORTED_LANGUAGE",
			"no parser image registered for language "+string(lang), nil)
	}

	return spec, nil
}

// IsSupported reports whether lang has a registered parser image.
func IsSupported(lang Language) bool {
	_, ok := parserTable[lang]

	return ok
}

// extensionToLanguage maps common file extensions to their detected
// language tag for the fast, unambiguous path. Content-based fallback
// via enry covers everything absent here or where the extension is
// genuinely ambiguous.
//
//nolint:gochecknoglobals // package-level lookup table for performance.
var extensionToLanguage = map[string]Language{
	".java": LanguageJava,
	".ts":   LanguageTypeScript,
	".mts":  LanguageTypeScript,
	".cts":  LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".js":   LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".jsx":  LanguageJavaScript,
}

// DetectLanguage tags a file by its fast extension lookup, falling back to
// enry's content-based classifier when the extension is absent or
// ambiguous. Returns "" when neither path produces a recognizable language.
func DetectLanguage(filename string, content []byte) Language {
	ext := strings.ToLower(path.Ext(filename))
	if ext != "" {
		if lang, ok := extensionToLanguage[ext]; ok {
			return lang
		}
	}

	detected := enry.GetLanguage(path.Base(filename), content)
	if detected == "" {
		return ""
	}

	return Language(detected)
}
