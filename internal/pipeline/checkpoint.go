package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph/codegraph-go/internal/codegraph"
)

const (
	nodesCheckpointFile = "nodes.json"
	relsCheckpointFile  = "relationships.json"
)

// WriteCheckpoint serializes the merged graph as two flat collections in the
// output directory, independent of the store. A persisted checkpoint lets
// the persistence stage be replayed without re-running upstream parsing.
// Both files are plain file I/O, written concurrently.
func WriteCheckpoint(g *codegraph.Graph, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return writeJSON(filepath.Join(outputDir, nodesCheckpointFile), g.Nodes)
	})
	eg.Go(func() error {
		return writeJSON(filepath.Join(outputDir, relsCheckpointFile), g.Relationships)
	})
	return eg.Wait()
}

// ReadCheckpoint loads a previously written checkpoint, for replaying the
// persistence stage.
func ReadCheckpoint(outputDir, codebaseID string) (*codegraph.Graph, error) {
	g := &codegraph.Graph{CodebaseID: codebaseID}

	if err := readJSON(filepath.Join(outputDir, nodesCheckpointFile), &g.Nodes); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(outputDir, relsCheckpointFile), &g.Relationships); err != nil {
		return nil, err
	}
	return g, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	return nil
}
