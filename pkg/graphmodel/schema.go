// Package graphmodel defines the canonical node/relationship schema that
// every parser normalizer converges on and the graph writer persists.
package graphmodel

import "fmt"

// NodeType is one of the closed set of node labels the schema accepts.
type NodeType string

// The closed set of node types.
const (
	NodeProject     NodeType = "Project"
	NodeCodebase    NodeType = "Codebase"
	NodeFile        NodeType = "File"
	NodeClass       NodeType = "Class"
	NodeInterface   NodeType = "Interface"
	NodeMethod      NodeType = "Method"
	NodeAnnotation  NodeType = "Annotation"
	NodeAPIEndpoint NodeType = "APIEndpoint"
	NodeTestCase    NodeType = "TestCase"
	NodeDependency  NodeType = "Dependency"
	NodeDocument    NodeType = "Document"
	NodeChunk       NodeType = "Chunk"
	NodeKafkaTopic  NodeType = "KafkaTopic"
	NodeUserFlow    NodeType = "UserFlow"
	NodeCommit      NodeType = "Commit"
	NodeAuthor      NodeType = "Author"
)

// RelationshipKind is one of the closed set of relationship labels.
type RelationshipKind string

// The closed set of relationship kinds.
const (
	RelHasCodebase        RelationshipKind = "HAS_CODEBASE"
	RelContainsFile       RelationshipKind = "CONTAINS_FILE"
	RelDefinesClass       RelationshipKind = "DEFINES_CLASS"
	RelDefinesMethod      RelationshipKind = "DEFINES_METHOD"
	RelHasMethod          RelationshipKind = "HAS_METHOD"
	RelCalls              RelationshipKind = "CALLS"
	RelImplements         RelationshipKind = "IMPLEMENTS"
	RelExtends            RelationshipKind = "EXTENDS"
	RelUsesType           RelationshipKind = "USES_TYPE"
	RelAnnotatedWith      RelationshipKind = "ANNOTATED_WITH"
	RelImplementsEndpoint RelationshipKind = "IMPLEMENTS_ENDPOINT"
	RelTests              RelationshipKind = "TESTS"
	RelDependsOn          RelationshipKind = "DEPENDS_ON"
	RelDescribedIn        RelationshipKind = "DESCRIBED_IN"
	RelHasChunk           RelationshipKind = "HAS_CHUNK"
	RelDocuments          RelationshipKind = "DOCUMENTS"
	RelPublishesTo        RelationshipKind = "PUBLISHES_TO"
	RelSubscribesTo       RelationshipKind = "SUBSCRIBES_TO"
	RelAuthored           RelationshipKind = "AUTHORED"
	RelModifiedIn         RelationshipKind = "MODIFIED_IN"
)

// typePair is an allowed (startNodeType, endNodeType) pair for a relationship kind.
type typePair struct {
	start NodeType
	end   NodeType
}

// relationshipSchema is the closed table of allowed (kind, startType, endType)
// triples. A relationship whose triple is absent here is a SchemaError,
// dropped by the normalizer (never fatal) per spec §4.6/§7.
//
//nolint:gochecknoglobals // closed constant lookup table, not mutable state.
var relationshipSchema = map[RelationshipKind][]typePair{
	RelHasCodebase:        {{NodeProject, NodeCodebase}},
	RelContainsFile:       {{NodeCodebase, NodeFile}},
	RelDefinesClass:       {{NodeFile, NodeClass}, {NodeFile, NodeInterface}},
	RelDefinesMethod:      {{NodeFile, NodeMethod}},
	RelHasMethod:          {{NodeClass, NodeMethod}, {NodeInterface, NodeMethod}},
	RelCalls:              {{NodeMethod, NodeMethod}},
	RelImplements:         {{NodeClass, NodeInterface}},
	RelExtends:            {{NodeClass, NodeClass}, {NodeInterface, NodeInterface}},
	RelUsesType:           {{NodeMethod, NodeClass}, {NodeMethod, NodeInterface}, {NodeClass, NodeClass}},
	RelAnnotatedWith:      {{NodeClass, NodeAnnotation}, {NodeMethod, NodeAnnotation}},
	RelImplementsEndpoint: {{NodeMethod, NodeAPIEndpoint}},
	RelTests:              {{NodeTestCase, NodeClass}, {NodeTestCase, NodeMethod}},
	RelDependsOn:          {{NodeCodebase, NodeDependency}},
	RelDescribedIn:        {{NodeClass, NodeDocument}, {NodeAPIEndpoint, NodeDocument}},
	RelHasChunk:           {{NodeDocument, NodeChunk}},
	RelDocuments:          {{NodeChunk, NodeClass}, {NodeChunk, NodeAPIEndpoint}},
	RelPublishesTo:        {{NodeMethod, NodeKafkaTopic}, {NodeClass, NodeKafkaTopic}},
	RelSubscribesTo:       {{NodeMethod, NodeKafkaTopic}, {NodeClass, NodeKafkaTopic}},
	RelAuthored:           {{NodeAuthor, NodeCommit}},
	RelModifiedIn:         {{NodeCommit, NodeFile}},
}

// AllowedPair reports whether (kind, startType, endType) is in the accepted
// relationship schema.
func AllowedPair(kind RelationshipKind, startType, endType NodeType) bool {
	pairs, ok := relationshipSchema[kind]
	if !ok {
		return false
	}

	for _, p := range pairs {
		if p.start == startType && p.end == endType {
			return true
		}
	}

	return false
}

// Node is one vertex in a NormalizedGraph.
type Node struct {
	ID         string
	Type       NodeType
	Properties map[string]any
}

// Relationship is one directed, typed edge in a NormalizedGraph.
type Relationship struct {
	Kind       RelationshipKind
	StartID    string
	EndID      string
	Properties map[string]any
}

// NormalizedGraph is the canonical output of a parser normalizer and the
// sole input the graph writer consumes.
type NormalizedGraph struct {
	Nodes         []Node
	Relationships []Relationship
}

// NodeID derives the deterministic id for a node: "<codebase>:<nodetype>:<identifier>".
// Deterministic across runs on identical input so re-emission merges cleanly.
func NodeID(codebase string, nodeType NodeType, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", codebase, lowerNodeType(nodeType), identifier)
}

// ProjectID derives a Project node id. Project and Codebase both key off
// the codebase name itself; there is one project per codebase in this model.
func ProjectID(codebase string) string {
	return NodeID(codebase, NodeProject, codebase)
}

// CodebaseID derives a Codebase node id.
func CodebaseID(codebase string) string {
	return NodeID(codebase, NodeCodebase, codebase)
}

// FileID derives a File node id from its repository-relative path.
func FileID(codebase, path string) string {
	return NodeID(codebase, NodeFile, path)
}

// ClassID derives a Class node id from a fully qualified name. Interfaces
// modeled as DEFINES_CLASS with entityType "interface" use the same
// derivation; NodeInterface exists for direct Interface node emission.
func ClassID(codebase, fullyQualifiedName string) string {
	return NodeID(codebase, NodeClass, fullyQualifiedName)
}

// InterfaceID derives an Interface node id from a fully qualified name.
func InterfaceID(codebase, fullyQualifiedName string) string {
	return NodeID(codebase, NodeInterface, fullyQualifiedName)
}

// MethodID derives a Method node id from its enclosing file, name, and
// starting line, disambiguating overloads at the same name.
func MethodID(codebase, filePath, name string, startLine int) string {
	return NodeID(codebase, NodeMethod, fmt.Sprintf("%s:%s:%d", filePath, name, startLine))
}

// DependencyID derives a Dependency node id. version is "unknown" when the
// parser could not resolve a concrete version string.
func DependencyID(codebase, name, version string) string {
	if version == "" {
		version = "unknown"
	}

	return NodeID(codebase, NodeDependency, fmt.Sprintf("%s:%s", name, version))
}

// APIEndpointID derives an APIEndpoint node id from its HTTP method and path.
func APIEndpointID(codebase, httpMethod, path string) string {
	return NodeID(codebase, NodeAPIEndpoint, fmt.Sprintf("%s:%s", httpMethod, path))
}

// TestCaseID derives a TestCase node id from its containing file and name.
func TestCaseID(codebase, filePath, name string) string {
	return NodeID(codebase, NodeTestCase, fmt.Sprintf("%s:%s", filePath, name))
}

func lowerNodeType(t NodeType) string {
	switch t {
	case NodeProject:
		return "project"
	case NodeCodebase:
		return "codebase"
	case NodeFile:
		return "file"
	case NodeClass:
		return "class"
	case NodeInterface:
		return "interface"
	case NodeMethod:
		return "method"
	case NodeAnnotation:
		return "annotation"
	case NodeAPIEndpoint:
		return "api_endpoint"
	case NodeTestCase:
		return "test_case"
	case NodeDependency:
		return "dependency"
	case NodeDocument:
		return "document"
	case NodeChunk:
		return "chunk"
	case NodeKafkaTopic:
		return "kafka_topic"
	case NodeUserFlow:
		return "user_flow"
	case NodeCommit:
		return "commit"
	case NodeAuthor:
		return "author"
	default:
		return string(t)
	}
}
