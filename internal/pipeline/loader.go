package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/codegraph"
)

// LoadFragments reads the per-file fragment JSON files produced by the
// external parsers from a directory. Files are loaded in sorted path order
// so the merger's last-write-wins semantics are reproducible across runs.
func LoadFragments(dir string, logger *logrus.Logger) ([]*codegraph.Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no fragment files found in %s", dir)
	}

	fragments := make([]*codegraph.Fragment, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fragment %s: %w", path, err)
		}
		var frag codegraph.Fragment
		if err := json.Unmarshal(data, &frag); err != nil {
			return nil, fmt.Errorf("failed to parse fragment %s: %w", path, err)
		}
		if frag.FilePath == "" {
			frag.FilePath = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		fragments = append(fragments, &frag)
	}

	logger.WithFields(logrus.Fields{
		"dir":       dir,
		"fragments": len(fragments),
	}).Info("Loaded extraction fragments")
	return fragments, nil
}
