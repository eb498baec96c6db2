package codegraph

import "time"

// Node labels used in the merged graph.
// CodeElement marks nodes that carry a full source location (name, filePath,
// startLine, endLine) and is assigned by a post-pass, not by fragment producers.
const (
	LabelFile        = "File"
	LabelComponent   = "Component"
	LabelComposable  = "Composable"
	LabelFunction    = "Function"
	LabelClass       = "Class"
	LabelVariable    = "Variable"
	LabelTypeAlias   = "TypeAlias"
	LabelImport      = "Import"
	LabelCodeElement = "CodeElement"

	// Stub labels for placeholder targets that never resolved.
	LabelUnresolvedComponent  = "UnresolvedComponent"
	LabelUnresolvedComposable = "UnresolvedComposable"
	LabelUnresolvedImport     = "UnresolvedImport"
)

// Relationship types.
const (
	RelCalls              = "CALLS"
	RelRenders            = "RENDERS"
	RelUsesComposable     = "USES_COMPOSABLE"
	RelImports            = "IMPORTS"
	RelImportsFromPackage = "IMPORTS_FROM_PACKAGE"
	RelExportsLocal       = "EXPORTS_LOCAL"
	RelExtends            = "EXTENDS"
	RelImplements         = "IMPLEMENTS"
	RelReferencesType     = "REFERENCES_TYPE"
	RelReferencesVariable = "REFERENCES_VARIABLE"
	RelDefinedIn          = "DEFINED_IN"
	RelDependsOn          = "DEPENDS_ON"
)

// Dependency strengths on derived DEPENDS_ON edges.
const (
	StrengthStrong = "strong"
	StrengthWeak   = "weak"
)

// GlobalCodebase is the shared namespace visible to every codebase.
const GlobalCodebase = "global"

// Node is a uniquely identified vertex in the merged graph.
// IDs are stable across runs for the same logical entity and take the form
// <codebase>:<Label>:<qualifier> (for code elements the qualifier is
// <filePath>#<name>).
type Node struct {
	ID         string         `json:"id"`
	CodebaseID string         `json:"codebaseId"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Name returns the node's display name property, if present.
func (n *Node) Name() string {
	if n.Properties == nil {
		return ""
	}
	if name, ok := n.Properties["name"].(string); ok {
		return name
	}
	return ""
}

// Relationship is a uniquely identified edge in the merged graph.
// A relationship produced by a single-file parser may carry a placeholder
// target (a display name instead of a canonical id); resolution either
// rewrites the target or sets exactly one Unresolved* marker.
type Relationship struct {
	ID         string         `json:"id"`
	CodebaseID string         `json:"codebaseId"`
	Type       string         `json:"type"`
	SourceID   string         `json:"sourceId"`
	TargetID   string         `json:"targetId"`
	Properties map[string]any `json:"properties,omitempty"`

	IsCrossCodebase  bool   `json:"isCrossCodebase,omitempty"`
	SourceCodebaseID string `json:"sourceCodebaseId,omitempty"`
	TargetCodebaseID string `json:"targetCodebaseId,omitempty"`

	UnresolvedComponent  bool `json:"unresolvedComponent,omitempty"`
	UnresolvedComposable bool `json:"unresolvedComposable,omitempty"`
	UnresolvedImport     bool `json:"unresolvedImport,omitempty"`
}

// Unresolved reports whether any unresolved-reference marker is set.
func (r *Relationship) Unresolved() bool {
	return r.UnresolvedComponent || r.UnresolvedComposable || r.UnresolvedImport
}

// Fragment is the per-file extraction result handed over by an external
// parser. Fragments are consumed destructively: the pipeline clears the
// slices once their entities are absorbed to bound peak memory.
type Fragment struct {
	FilePath      string          `json:"filePath"`
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// Release drops the fragment's entity slices after absorption.
func (f *Fragment) Release() {
	f.Nodes = nil
	f.Relationships = nil
}

// Graph is the merged, deduplicated in-memory artifact. It exists only until
// persisted; the store is the durable copy.
type Graph struct {
	CodebaseID    string
	Nodes         []*Node
	Relationships []*Relationship
}

// NodeIndex returns a lookup of node id -> node for the current node set.
func (g *Graph) NodeIndex() map[string]*Node {
	idx := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = n
	}
	return idx
}
