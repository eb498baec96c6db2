package codegraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerrors "github.com/codegraph/codegraph-go/internal/errors"
)

func validGraph() *Graph {
	return &Graph{
		CodebaseID: "app",
		Nodes: []*Node{
			node("app:Function:src/a.ts#run", LabelFunction),
			node("app:Function:src/b.ts#save", LabelFunction),
		},
		Relationships: []*Relationship{
			rel("r1", RelCalls, "app:Function:src/a.ts#run", "app:Function:src/b.ts#save"),
		},
	}
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	dangling, err := NewValidator(testLogger()).Validate(validGraph())
	assert.NoError(t, err)
	assert.Empty(t, dangling)
}

func TestValidateStructuralViolationsAreFatal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Graph)
	}{
		{"node empty id", func(g *Graph) { g.Nodes[0].ID = "" }},
		{"node missing codebase", func(g *Graph) { g.Nodes[0].CodebaseID = "" }},
		{"node no labels", func(g *Graph) { g.Nodes[0].Labels = nil }},
		{"rel empty id", func(g *Graph) { g.Relationships[0].ID = "" }},
		{"rel missing codebase", func(g *Graph) { g.Relationships[0].CodebaseID = "" }},
		{"rel missing type", func(g *Graph) { g.Relationships[0].Type = "" }},
		{"rel missing source", func(g *Graph) { g.Relationships[0].SourceID = "" }},
		{"rel missing target", func(g *Graph) { g.Relationships[0].TargetID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGraph()
			tt.mutate(g)

			_, err := NewValidator(testLogger()).Validate(g)

			require.Error(t, err)
			assert.Equal(t, cgerrors.ErrorTypeStructural, cgerrors.GetType(err))
			assert.True(t, cgerrors.IsFatal(err))
		})
	}
}

func TestValidateReportsDanglingButProceeds(t *testing.T) {
	g := validGraph()
	g.Relationships = append(g.Relationships,
		rel("r2", RelCalls, "app:Function:src/a.ts#run", "app:Function:src/ghost.ts#gone"))

	dangling, err := NewValidator(testLogger()).Validate(g)

	assert.NoError(t, err, "soft gate findings must not fail the run by default")
	require.Len(t, dangling, 1)
	assert.Equal(t, "r2", dangling[0].ID)
}

func TestValidateStrictEscalatesDangling(t *testing.T) {
	g := validGraph()
	g.Relationships = append(g.Relationships,
		rel("r2", RelCalls, "app:Function:src/a.ts#run", "missing"))

	v := NewValidator(testLogger())
	v.Strict = true
	dangling, err := v.Validate(g)

	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrorTypeReferential, cgerrors.GetType(err))
	assert.Len(t, dangling, 1)
}

func TestValidateExemptKindsNeverDangle(t *testing.T) {
	g := validGraph()
	for _, kind := range []string{
		RelImportsFromPackage, RelExportsLocal, RelExtends,
		RelImplements, RelReferencesType, RelReferencesVariable, RelDependsOn,
	} {
		g.Relationships = append(g.Relationships,
			rel("x-"+kind, kind, "app:Function:src/a.ts#run", "unknown-target"))
	}

	dangling, err := NewValidator(testLogger()).Validate(g)

	assert.NoError(t, err)
	assert.Empty(t, dangling)
}

func TestValidateUnresolvedMarkerExempts(t *testing.T) {
	g := validGraph()
	r := rel("r2", RelRenders, "app:Function:src/a.ts#run", "GhostWidget")
	r.UnresolvedComponent = true
	g.Relationships = append(g.Relationships, r)

	dangling, err := NewValidator(testLogger()).Validate(g)

	assert.NoError(t, err)
	assert.Empty(t, dangling, "flagged placeholders are handled by stub materialization")
}

func TestValidateImportAssetExemption(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "components"), 0o755))

	g := validGraph()
	g.Relationships = append(g.Relationships,
		rel("css", RelImports, "app:Function:src/a.ts#run", "app:File:src/styles.css"),
		rel("dir", RelImports, "app:Function:src/a.ts#run", "app:File:src/components"),
		rel("code", RelImports, "app:Function:src/a.ts#run", "app:File:src/nowhere.ts"),
	)

	v := NewValidator(testLogger())
	v.ProjectRoot = root
	dangling, err := v.Validate(g)

	assert.NoError(t, err)
	require.Len(t, dangling, 1, "only the unresolvable code import should dangle")
	assert.Equal(t, "code", dangling[0].ID)
}

func TestValidateSkipSoft(t *testing.T) {
	g := validGraph()
	g.Relationships = append(g.Relationships,
		rel("r2", RelCalls, "app:Function:src/a.ts#run", "missing"))

	v := NewValidator(testLogger())
	v.SkipSoft = true
	v.Strict = true
	dangling, err := v.Validate(g)

	assert.NoError(t, err)
	assert.Nil(t, dangling)
}

func TestImportedPath(t *testing.T) {
	assert.Equal(t, "src/styles.css", importedPath("app:File:src/styles.css"))
	assert.Equal(t, "./styles.css", importedPath("./styles.css"))
	assert.Equal(t, "app:Class:x", importedPath("app:Class:x"))
}
