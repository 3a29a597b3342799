package normalize

import (
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
)

// TypeScriptNormalizer maps TS-style parser output (sourceFiles/types/
// functions/packages/routes/tests/edges) onto a NormalizedGraph. Converges
// on the identical canonical schema as JavaNormalizer; only the raw field
// names differ.
type TypeScriptNormalizer struct{}

// Normalize implements Normalizer for TS-style parser output.
func (TypeScriptNormalizer) Normalize(codebase string, raw map[string]any) (*graphmodel.NormalizedGraph, error) {
	if err := validateShape("normalize.TypeScriptNormalizer.Normalize", typescriptSchema, raw); err != nil {
		return nil, err
	}

	b := newBuilder(codebase)
	idByQualifiedName := map[string]typedNode{}
	idBySourceFile := map[string]string{}

	for _, f := range mapSlice(raw, "sourceFiles") {
		path := stringField(f, "filePath")
		id := graphmodel.FileID(codebase, path)
		idBySourceFile[path] = id

		b.addNode(id, graphmodel.NodeFile, map[string]any{
			"path":        path,
			"filename":    stringField(f, "fileName"),
			"checksum":    stringField(f, "hash"),
			"lineCount":   intField(f, "lines"),
			"extension":   stringField(f, "ext"),
			"packageName": stringField(f, "module"),
			"isTestFile":  graphmodel.IsTestFilePath(path),
		})
		b.addRelationship(graphmodel.RelContainsFile, graphmodel.CodebaseID(codebase), id, nil)
	}

	for _, t := range mapSlice(raw, "types") {
		qualifiedName := stringField(t, "qualifiedName")
		kind := stringField(t, "kind")

		var id string

		typ := graphmodel.NodeClass
		if kind == "interface" {
			id = graphmodel.InterfaceID(codebase, qualifiedName)
			typ = graphmodel.NodeInterface
		} else {
			id = graphmodel.ClassID(codebase, qualifiedName)
		}

		idByQualifiedName[qualifiedName] = typedNode{ID: id, Type: typ}

		props := map[string]any{
			"fullyQualifiedName": qualifiedName,
			"visibility":         string(graphmodel.NormalizeVisibility(stringField(t, "access"))),
		}
		if kind == "interface" {
			props["entityType"] = "interface"
		}

		b.addNode(id, typ, props)

		sourceFile := stringField(t, "sourceFile")
		if fileID, ok := idBySourceFile[sourceFile]; ok {
			b.addRelationship(graphmodel.RelDefinesClass, fileID, id, map[string]any{"entityType": defaultEntityType(kind)})
		}
	}

	for _, fn := range mapSlice(raw, "functions") {
		name := stringField(fn, "name")
		sourceFile := stringField(fn, "sourceFile")
		line := intField(fn, "line")
		id := graphmodel.MethodID(codebase, sourceFile, name, line)

		b.addNode(id, graphmodel.NodeMethod, map[string]any{
			"name":       name,
			"filePath":   sourceFile,
			"startLine":  line,
			"visibility": string(graphmodel.NormalizeVisibility(stringField(fn, "access"))),
		})

		if fileID, ok := idBySourceFile[sourceFile]; ok {
			b.addRelationship(graphmodel.RelDefinesMethod, fileID, id, nil)
		}

		if owner, ok := idByQualifiedName[stringField(fn, "owner")]; ok {
			b.addRelationship(graphmodel.RelHasMethod, owner.ID, id, nil)
		}
	}

	for _, pkg := range mapSlice(raw, "packages") {
		name := stringField(pkg, "name")
		version := stringField(pkg, "version")
		id := graphmodel.DependencyID(codebase, name, version)

		b.addNode(id, graphmodel.NodeDependency, map[string]any{
			"name":    name,
			"version": version,
			"scope":   stringField(pkg, "kind"),
		})
		b.addRelationship(graphmodel.RelDependsOn, graphmodel.CodebaseID(codebase), id, map[string]any{"scope": stringField(pkg, "kind")})
	}

	for _, r := range mapSlice(raw, "routes") {
		method := stringField(r, "method")
		path := stringField(r, "route")
		id := graphmodel.APIEndpointID(codebase, method, path)

		b.addNode(id, graphmodel.NodeAPIEndpoint, map[string]any{
			"httpMethod":     method,
			"path":           path,
			"requestSchema":  stringField(r, "reqSchema"),
			"responseSchema": stringField(r, "resSchema"),
		})
	}

	for _, tc := range mapSlice(raw, "tests") {
		name := stringField(tc, "name")
		sourceFile := stringField(tc, "sourceFile")
		id := graphmodel.TestCaseID(codebase, sourceFile, name)

		b.addNode(id, graphmodel.NodeTestCase, map[string]any{
			"name":     name,
			"filePath": sourceFile,
		})

		if owner, ok := idByQualifiedName[stringField(tc, "owner")]; ok {
			b.addRelationship(graphmodel.RelTests, id, owner.ID, nil)
		}
	}

	for _, edge := range mapSlice(raw, "edges") {
		fromID, fromType, fromOK := resolveEndpoint(idByQualifiedName, stringField(edge, "source"))
		toID, toType, toOK := resolveEndpoint(idByQualifiedName, stringField(edge, "target"))

		if !fromOK || !toOK {
			continue
		}

		b.addParserRelationship(stringField(edge, "type"), fromID, toID, fromType, toType)
	}

	return b.result(), nil
}
