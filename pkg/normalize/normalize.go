// Package normalize maps heterogeneous parser JSON onto the canonical
// NormalizedGraph schema. Two normalizers exist, Java-style and TS-style,
// differing only in the raw field names they read; both converge on the
// same graphmodel shapes, id derivation, and relationship filtering.
package normalize

import (
	"github.com/codegraph-dev/indexer/pkg/errs"
	"github.com/codegraph-dev/indexer/pkg/graphmodel"
)

// Normalizer maps one language's raw parser JSON onto a NormalizedGraph.
type Normalizer interface {
	Normalize(codebase string, raw map[string]any) (*graphmodel.NormalizedGraph, error)
}

// relationshipKindMap maps the parser's lowercase relationship tags onto
// the canonical closed set; "uses" collapses onto USES_TYPE per spec.
//
//nolint:gochecknoglobals // closed constant table.
var relationshipKindMap = map[string]graphmodel.RelationshipKind{
	"extends":    graphmodel.RelExtends,
	"implements": graphmodel.RelImplements,
	"calls":      graphmodel.RelCalls,
	"uses":       graphmodel.RelUsesType,
}

// builder accumulates nodes and relationships for one normalization pass
// and owns the project/codebase scaffolding shared by both styles.
type builder struct {
	codebase string
	graph    graphmodel.NormalizedGraph
}

func newBuilder(codebase string) *builder {
	b := &builder{codebase: codebase}

	b.addNode(graphmodel.ProjectID(codebase), graphmodel.NodeProject, map[string]any{"name": codebase})
	b.addNode(graphmodel.CodebaseID(codebase), graphmodel.NodeCodebase, map[string]any{"name": codebase})
	b.addRelationship(graphmodel.RelHasCodebase, graphmodel.ProjectID(codebase), graphmodel.CodebaseID(codebase), nil)

	return b
}

func (b *builder) addNode(id string, nodeType graphmodel.NodeType, props map[string]any) {
	if props == nil {
		props = map[string]any{}
	}

	b.graph.Nodes = append(b.graph.Nodes, graphmodel.Node{ID: id, Type: nodeType, Properties: props})
}

func (b *builder) addRelationship(kind graphmodel.RelationshipKind, startID, endID string, props map[string]any) {
	if props == nil {
		props = map[string]any{}
	}

	b.graph.Relationships = append(b.graph.Relationships, graphmodel.Relationship{
		Kind: kind, StartID: startID, EndID: endID, Properties: props,
	})
}

// addParserRelationship filters a raw parser-emitted relationship record to
// the accepted kinds, dropping (not erroring on) anything unrecognized or
// outside the allowed node-type pair for its kind.
func (b *builder) addParserRelationship(rawKind string, startID, endID string, startType, endType graphmodel.NodeType) {
	kind, ok := relationshipKindMap[rawKind]
	if !ok {
		return
	}

	if !graphmodel.AllowedPair(kind, startType, endType) {
		return
	}

	b.addRelationship(kind, startID, endID, nil)
}

func (b *builder) result() *graphmodel.NormalizedGraph {
	return &b.graph
}

// stringField reads a string field from a raw map, defaulting to "" when
// absent or of the wrong type, per the values policy (never null).
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}

	s, ok := v.(string)
	if !ok {
		return ""
	}

	return s
}

// intField reads a numeric field, defaulting to 0. JSON numbers decode as
// float64 through encoding/json's map[string]any path.
func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}

	f, ok := v.(float64)
	if !ok {
		return 0
	}

	return int(f)
}

func mapSlice(raw map[string]any, key string) []map[string]any {
	v, ok := raw[key]
	if !ok {
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]map[string]any, 0, len(items))

	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}

	return out
}

func newSchemaError(op, message string) error {
	return errs.New(errs.KindSchema, op, "SCHEMA_VIOLATION", message, nil)
}
