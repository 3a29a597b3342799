package normalize

import (
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
)

// JavaNormalizer maps Java-style parser output (files/classes/methods/
// dependencies/apiEndpoints/testCases/relationships) onto a NormalizedGraph.
type JavaNormalizer struct{}

// Normalize implements Normalizer for Java-style parser output.
func (JavaNormalizer) Normalize(codebase string, raw map[string]any) (*graphmodel.NormalizedGraph, error) {
	if err := validateShape("normalize.JavaNormalizer.Normalize", javaSchema, raw); err != nil {
		return nil, err
	}

	b := newBuilder(codebase)
	idByFQN := map[string]typedNode{} // fully qualified name -> node id+type, for relationship resolution
	idByFilePath := map[string]string{}

	for _, f := range mapSlice(raw, "files") {
		path := stringField(f, "path")
		id := graphmodel.FileID(codebase, path)
		idByFilePath[path] = id

		b.addNode(id, graphmodel.NodeFile, map[string]any{
			"path":        path,
			"filename":    stringField(f, "filename"),
			"checksum":    stringField(f, "checksum"),
			"lineCount":   intField(f, "lineCount"),
			"extension":   stringField(f, "extension"),
			"packageName": stringField(f, "packageName"),
			"isTestFile":  graphmodel.IsTestFilePath(path),
		})
		b.addRelationship(graphmodel.RelContainsFile, graphmodel.CodebaseID(codebase), id, nil)
	}

	for _, c := range mapSlice(raw, "classes") {
		fqn := stringField(c, "fullyQualifiedName")
		entityType := stringField(c, "entityType")

		var id string

		typ := graphmodel.NodeClass
		if entityType == "interface" {
			id = graphmodel.InterfaceID(codebase, fqn)
			typ = graphmodel.NodeInterface
		} else {
			id = graphmodel.ClassID(codebase, fqn)
		}

		idByFQN[fqn] = typedNode{ID: id, Type: typ}

		props := map[string]any{
			"fullyQualifiedName": fqn,
			"visibility":         string(graphmodel.NormalizeVisibility(stringField(c, "visibility"))),
		}
		if entityType == "interface" {
			props["entityType"] = "interface"
		}

		b.addNode(id, typ, props)

		filePath := stringField(c, "filePath")
		if fileID, ok := idByFilePath[filePath]; ok {
			b.addRelationship(graphmodel.RelDefinesClass, fileID, id, map[string]any{"entityType": defaultEntityType(entityType)})
		}

		for _, ann := range stringSlice(c, "annotations") {
			annID := graphmodel.NodeID(codebase, graphmodel.NodeAnnotation, ann)
			b.addNode(annID, graphmodel.NodeAnnotation, map[string]any{"name": ann})
			b.addRelationship(graphmodel.RelAnnotatedWith, id, annID, nil)
		}
	}

	for _, m := range mapSlice(raw, "methods") {
		name := stringField(m, "name")
		filePath := stringField(m, "filePath")
		startLine := intField(m, "startLine")
		id := graphmodel.MethodID(codebase, filePath, name, startLine)

		b.addNode(id, graphmodel.NodeMethod, map[string]any{
			"name":       name,
			"filePath":   filePath,
			"startLine":  startLine,
			"visibility": string(graphmodel.NormalizeVisibility(stringField(m, "visibility"))),
		})

		if fileID, ok := idByFilePath[filePath]; ok {
			b.addRelationship(graphmodel.RelDefinesMethod, fileID, id, nil)
		}

		if class, ok := idByFQN[stringField(m, "className")]; ok {
			b.addRelationship(graphmodel.RelHasMethod, class.ID, id, nil)
		}
	}

	for _, d := range mapSlice(raw, "dependencies") {
		name := stringField(d, "name")
		version := stringField(d, "version")
		id := graphmodel.DependencyID(codebase, name, version)

		b.addNode(id, graphmodel.NodeDependency, map[string]any{
			"name":    name,
			"version": version,
			"scope":   stringField(d, "scope"),
		})
		b.addRelationship(graphmodel.RelDependsOn, graphmodel.CodebaseID(codebase), id, map[string]any{"scope": stringField(d, "scope")})
	}

	for _, e := range mapSlice(raw, "apiEndpoints") {
		method := stringField(e, "httpMethod")
		path := stringField(e, "path")
		id := graphmodel.APIEndpointID(codebase, method, path)

		b.addNode(id, graphmodel.NodeAPIEndpoint, map[string]any{
			"httpMethod":     method,
			"path":           path,
			"requestSchema":  stringField(e, "requestSchema"),
			"responseSchema": stringField(e, "responseSchema"),
		})
	}

	for _, tc := range mapSlice(raw, "testCases") {
		name := stringField(tc, "name")
		filePath := stringField(tc, "filePath")
		id := graphmodel.TestCaseID(codebase, filePath, name)

		b.addNode(id, graphmodel.NodeTestCase, map[string]any{
			"name":     name,
			"filePath": filePath,
		})

		if class, ok := idByFQN[stringField(tc, "className")]; ok {
			b.addRelationship(graphmodel.RelTests, id, class.ID, nil)
		}
	}

	for _, rel := range mapSlice(raw, "relationships") {
		fromID, fromType, fromOK := resolveEndpoint(idByFQN, stringField(rel, "from"))
		toID, toType, toOK := resolveEndpoint(idByFQN, stringField(rel, "to"))

		if !fromOK || !toOK {
			continue
		}

		b.addParserRelationship(stringField(rel, "kind"), fromID, toID, fromType, toType)
	}

	return b.result(), nil
}

func defaultEntityType(entityType string) string {
	if entityType == "" {
		return "class"
	}

	return entityType
}

// typedNode remembers both the id and the closed node type a fully
// qualified name resolved to, since EXTENDS/IMPLEMENTS/USES_TYPE each allow
// a different (startType, endType) pair depending on whether an endpoint is
// a Class or an Interface.
type typedNode struct {
	ID   string
	Type graphmodel.NodeType
}

func resolveEndpoint(idByFQN map[string]typedNode, fqn string) (id string, typ graphmodel.NodeType, ok bool) {
	tn, ok := idByFQN[fqn]
	if !ok {
		return "", "", false
	}

	return tn.ID, tn.Type, true
}

func stringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return graphmodel.StringsProp(out)
}
