package codegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAggregatesWeight(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Relationships: []*Relationship{
			rel("r1", RelCalls, "a", "b"),
			rel("r2", RelCalls, "a", "b"),
			rel("r3", RelCalls, "a", "b"),
		},
	}

	count := NewDeriver(testLogger()).Derive(g)

	assert.Equal(t, 1, count)
	require.Len(t, g.Relationships, 4)

	dep := g.Relationships[3]
	assert.Equal(t, RelDependsOn, dep.Type)
	assert.Equal(t, "app:DEPENDS_ON:a->b", dep.ID)
	assert.Equal(t, 3, dep.Properties["weight"])
	assert.Equal(t, StrengthStrong, dep.Properties["strength"])
}

func TestDeriveStrongWinsOverWeak(t *testing.T) {
	tests := []struct {
		name     string
		kinds    []string
		strength string
	}{
		{"weak only", []string{RelReferencesType, RelReferencesVariable}, StrengthWeak},
		{"weak then strong", []string{RelReferencesType, RelCalls}, StrengthStrong},
		{"strong then weak", []string{RelCalls, RelReferencesVariable}, StrengthStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Graph{CodebaseID: "app"}
			for i, kind := range tt.kinds {
				g.Relationships = append(g.Relationships, rel(string(rune('a'+i)), kind, "src", "dst"))
			}

			NewDeriver(testLogger()).Derive(g)

			dep := g.Relationships[len(g.Relationships)-1]
			require.Equal(t, RelDependsOn, dep.Type)
			assert.Equal(t, tt.strength, dep.Properties["strength"])
			assert.Equal(t, len(tt.kinds), dep.Properties["weight"])
		})
	}
}

func TestDeriveDistinctPairsGetDistinctEdges(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Relationships: []*Relationship{
			rel("r1", RelCalls, "a", "b"),
			rel("r2", RelCalls, "a", "c"),
			rel("r3", RelCalls, "b", "c"),
		},
	}

	count := NewDeriver(testLogger()).Derive(g)

	assert.Equal(t, 3, count)
	// Derived edges appended in first-seen order.
	assert.Equal(t, "app:DEPENDS_ON:a->b", g.Relationships[3].ID)
	assert.Equal(t, "app:DEPENDS_ON:a->c", g.Relationships[4].ID)
	assert.Equal(t, "app:DEPENDS_ON:b->c", g.Relationships[5].ID)
}

func TestDeriveIgnoresNonPrimitiveKinds(t *testing.T) {
	g := &Graph{
		CodebaseID: "app",
		Relationships: []*Relationship{
			rel("r1", RelImports, "a", "b"),
			rel("r2", RelRenders, "a", "b"),
			rel("r3", RelDefinedIn, "a", "b"),
		},
	}

	count := NewDeriver(testLogger()).Derive(g)

	assert.Equal(t, 0, count)
	assert.Len(t, g.Relationships, 3)
}

func TestDeriveDeterministicAcrossRuns(t *testing.T) {
	build := func() *Graph {
		return &Graph{
			CodebaseID: "app",
			Relationships: []*Relationship{
				rel("r1", RelCalls, "a", "b"),
				rel("r2", RelReferencesType, "a", "b"),
				rel("r3", RelCalls, "c", "d"),
			},
		}
	}

	g1, g2 := build(), build()
	NewDeriver(testLogger()).Derive(g1)
	NewDeriver(testLogger()).Derive(g2)

	require.Equal(t, len(g1.Relationships), len(g2.Relationships))
	for i := range g1.Relationships {
		assert.Equal(t, g1.Relationships[i].ID, g2.Relationships[i].ID)
		assert.Equal(t, g1.Relationships[i].Properties, g2.Relationships[i].Properties)
	}
}
