package codegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedNode(id, label, name string) *Node {
	n := node(id, label)
	n.Properties["name"] = name
	return n
}

func fileNode(id, path string) *Node {
	n := node(id, LabelFile)
	n.Properties["filePath"] = path
	return n
}

func TestResolveRewritesPlaceholderTargets(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Nodes: []*Node{
			namedNode("app:Component:src/Button.vue#Button", LabelComponent, "Button"),
			namedNode("app:Composable:src/useAuth.ts#useAuth", LabelComposable, "useAuth"),
			fileNode("app:File:src/utils.ts", "src/utils.ts"),
			fileNode("app:File:src/App.vue", "src/App.vue"),
		},
		Relationships: []*Relationship{
			rel("r1", RelRenders, "app:File:src/App.vue", "Button"),
			rel("r2", RelUsesComposable, "app:File:src/App.vue", "useAuth"),
			rel("r3", RelImports, "app:File:src/App.vue", "./src/utils.ts"),
		},
	}

	stats := NewResolver(testLogger()).Resolve(g)

	assert.Equal(t, 3, stats.Resolved)
	assert.Equal(t, 0, stats.Unresolved)
	assert.Equal(t, "app:Component:src/Button.vue#Button", g.Relationships[0].TargetID)
	assert.Equal(t, "app:Composable:src/useAuth.ts#useAuth", g.Relationships[1].TargetID)
	assert.Equal(t, "app:File:src/utils.ts", g.Relationships[2].TargetID)
	for _, r := range g.Relationships {
		assert.False(t, r.Unresolved(), "resolved edge %s should carry no marker", r.ID)
	}
}

func TestResolveMarksMissesAndKeepsPlaceholder(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Nodes: []*Node{
			fileNode("app:File:src/App.vue", "src/App.vue"),
		},
		Relationships: []*Relationship{
			rel("r1", RelRenders, "app:File:src/App.vue", "GhostWidget"),
			rel("r2", RelUsesComposable, "app:File:src/App.vue", "useGhost"),
			rel("r3", RelImports, "app:File:src/App.vue", "./src/missing.ts"),
		},
	}

	stats := NewResolver(testLogger()).Resolve(g)

	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 3, stats.Unresolved)

	require.True(t, g.Relationships[0].UnresolvedComponent)
	assert.Equal(t, "GhostWidget", g.Relationships[0].TargetID, "placeholder survives for stub materialization")
	assert.True(t, g.Relationships[1].UnresolvedComposable)
	assert.True(t, g.Relationships[2].UnresolvedImport)
	assert.Equal(t, "./src/missing.ts", g.Relationships[2].TargetID)
}

func TestResolveSkipsCanonicalTargets(t *testing.T) {
	button := namedNode("app:Component:src/Button.vue#Button", LabelComponent, "Button")
	g := &Graph{
		CodebaseID: "app",
		Nodes:      []*Node{button, fileNode("app:File:src/App.vue", "src/App.vue")},
		Relationships: []*Relationship{
			// Target is already a canonical id; resolution must not touch it.
			rel("r1", RelRenders, "app:File:src/App.vue", button.ID),
		},
	}

	stats := NewResolver(testLogger()).Resolve(g)

	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 0, stats.Unresolved)
	assert.Equal(t, button.ID, g.Relationships[0].TargetID)
}

func TestResolveIgnoresNonResolvableKinds(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Nodes:      []*Node{fileNode("app:File:src/a.ts", "src/a.ts")},
		Relationships: []*Relationship{
			rel("r1", RelImportsFromPackage, "app:File:src/a.ts", "lodash"),
			rel("r2", RelCalls, "app:File:src/a.ts", "app:Function:src/b.ts#save"),
		},
	}

	stats := NewResolver(testLogger()).Resolve(g)

	assert.Equal(t, 0, stats.Unresolved)
	assert.Equal(t, "lodash", g.Relationships[0].TargetID)
	assert.False(t, g.Relationships[0].Unresolved())
}

func TestNormalizeImportPath(t *testing.T) {
	assert.Equal(t, "src/utils.ts", normalizeImportPath("./src/utils.ts"))
	assert.Equal(t, "src/utils.ts", normalizeImportPath("src/utils.ts"))
	assert.Equal(t, "../shared/a.ts", normalizeImportPath("../shared/a.ts"))
}
