package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/codegraph"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := &codegraph.Graph{
		CodebaseID: "app",
		Nodes: []*codegraph.Node{
			{ID: "n1", CodebaseID: "app", Labels: []string{"File"},
				Properties: map[string]any{"filePath": "src/a.ts"}},
		},
		Relationships: []*codegraph.Relationship{
			{ID: "r1", CodebaseID: "app", Type: codegraph.RelCalls,
				SourceID: "n1", TargetID: "n2", UnresolvedImport: true},
		},
	}

	require.NoError(t, WriteCheckpoint(g, dir))

	loaded, err := ReadCheckpoint(dir, "app")
	require.NoError(t, err)

	assert.Equal(t, "app", loaded.CodebaseID)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "n1", loaded.Nodes[0].ID)
	assert.Equal(t, "src/a.ts", loaded.Nodes[0].Properties["filePath"])
	require.Len(t, loaded.Relationships, 1)
	assert.True(t, loaded.Relationships[0].UnresolvedImport, "markers survive the round trip")
}

func TestWriteCheckpointCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	g := &codegraph.Graph{CodebaseID: "app"}

	require.NoError(t, WriteCheckpoint(g, dir))

	assert.FileExists(t, filepath.Join(dir, "nodes.json"))
	assert.FileExists(t, filepath.Join(dir, "relationships.json"))
}

func TestReadCheckpointMissing(t *testing.T) {
	_, err := ReadCheckpoint(t.TempDir(), "app")
	assert.Error(t, err)
}
