package normalize

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// javaSchema is the accepted shape of Java-style parser output. Only the
// top-level array fields are constrained; per-item field absence is
// tolerated downstream per the values policy.
const javaSchema = `{
  "type": "object",
  "properties": {
    "files":         {"type": "array"},
    "classes":       {"type": "array"},
    "methods":       {"type": "array"},
    "dependencies":  {"type": "array"},
    "apiEndpoints":  {"type": "array"},
    "testCases":     {"type": "array"},
    "relationships": {"type": "array"}
  }
}`

// typescriptSchema is the accepted shape of TS-style parser output.
const typescriptSchema = `{
  "type": "object",
  "properties": {
    "sourceFiles": {"type": "array"},
    "types":       {"type": "array"},
    "functions":   {"type": "array"},
    "packages":    {"type": "array"},
    "routes":      {"type": "array"},
    "tests":       {"type": "array"},
    "edges":       {"type": "array"}
  }
}`

func validateShape(op, schemaJSON string, raw map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return errs.Wrap(errs.KindParse, op, "SCHEMA_EVAL_FAILED", err, "evaluate parser output against schema")
	}

	if !result.Valid() {
		return newSchemaError(op, fmt.Sprintf("parser output violates accepted shape: %v", result.Errors()))
	}

	return nil
}
