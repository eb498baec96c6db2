package codegraph

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func node(id string, labels ...string) *Node {
	return &Node{ID: id, CodebaseID: "app", Labels: labels, Properties: map[string]any{}}
}

func rel(id, relType, source, target string) *Relationship {
	return &Relationship{ID: id, CodebaseID: "app", Type: relType, SourceID: source, TargetID: target}
}

func TestMergeDeduplicatesAcrossFragments(t *testing.T) {
	shared := node("app:Class:src/user.ts#User", LabelClass)
	frags := []*Fragment{
		{
			FilePath: "src/user.ts",
			Nodes:    []*Node{shared, node("app:File:src/user.ts", LabelFile)},
			Relationships: []*Relationship{
				rel("r1", RelCalls, "app:Function:src/a.ts#run", "app:Function:src/b.ts#save"),
			},
		},
		{
			FilePath: "src/order.ts",
			Nodes:    []*Node{node("app:Class:src/user.ts#User", LabelClass), node("app:File:src/order.ts", LabelFile)},
			Relationships: []*Relationship{
				rel("r1", RelCalls, "app:Function:src/a.ts#run", "app:Function:src/b.ts#save"),
				rel("r2", RelCalls, "app:Function:src/c.ts#load", "app:Function:src/b.ts#save"),
			},
		},
	}

	g := NewMerger(testLogger()).Merge("app", frags)

	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Relationships, 2)
	assert.Equal(t, "app", g.CodebaseID)

	// Fragments are released after absorption.
	for _, f := range frags {
		assert.Nil(t, f.Nodes)
		assert.Nil(t, f.Relationships)
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	first := node("app:Function:src/a.ts#run", LabelFunction)
	first.Properties["startLine"] = 10
	second := node("app:Function:src/a.ts#run", LabelFunction)
	second.Properties["startLine"] = 42

	g := NewMerger(testLogger()).Merge("app", []*Fragment{
		{FilePath: "src/a.ts", Nodes: []*Node{first}},
		{FilePath: "src/a2.ts", Nodes: []*Node{second}},
	})

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 42, g.Nodes[0].Properties["startLine"], "later fragment should win the slot")
}

func TestMergePreservesFirstSeenOrder(t *testing.T) {
	g := NewMerger(testLogger()).Merge("app", []*Fragment{
		{Nodes: []*Node{node("n1", LabelFile), node("n2", LabelFile)}},
		{Nodes: []*Node{node("n1", LabelFile), node("n3", LabelFile)}},
	})

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "n1", g.Nodes[0].ID)
	assert.Equal(t, "n2", g.Nodes[1].ID)
	assert.Equal(t, "n3", g.Nodes[2].ID)
}

func TestMergeDedupesBeforeDerivation(t *testing.T) {
	// A relationship duplicated across fragments must collapse to one edge
	// before derivation, so its dependency weight counts it once.
	dup := func() *Relationship {
		return rel("r1", RelCalls, "f1:Function:foo", "f1:Function:bar")
	}
	g := NewMerger(testLogger()).Merge("f1", []*Fragment{
		{Nodes: []*Node{node("f1:File:a.ts", LabelFile)}, Relationships: []*Relationship{dup(), dup()}},
		{Nodes: []*Node{node("f1:File:a.ts", LabelFile)}},
	})

	require.Len(t, g.Nodes, 1)
	require.Len(t, g.Relationships, 1)

	derived := NewDeriver(testLogger()).Derive(g)

	assert.Equal(t, 1, derived)
	dep := g.Relationships[len(g.Relationships)-1]
	assert.Equal(t, 1, dep.Properties["weight"])
}

func TestMergeEmptyFragments(t *testing.T) {
	g := NewMerger(testLogger()).Merge("app", nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Relationships)
}
