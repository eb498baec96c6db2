package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/codegraph/codegraph-go/internal/pipeline"
)

var runsBucket = []byte("runs")

// Log is a local ledger of past ingestion runs, kept outside the graph store
// so run history survives store wipes and is readable without a connection.
type Log struct {
	db *bolt.DB
}

// Open opens (or creates) the run ledger at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run log: %w", err)
	}
	return &Log{db: db}, nil
}

// Record stores one run result, keyed by start time + run id so listing in
// key order is chronological.
func (l *Log) Record(result *pipeline.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	key := []byte(result.StartedAt.UTC().Format(time.RFC3339) + "/" + result.RunID)
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key, data)
	})
}

// Recent returns up to limit run results, newest first.
func (l *Log) Recent(limit int) ([]*pipeline.Result, error) {
	var results []*pipeline.Result
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(results) < limit; k, v = c.Prev() {
			var r pipeline.Result
			if err := json.Unmarshal(v, &r); err != nil {
				continue // skip unreadable entries rather than failing the listing
			}
			results = append(results, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// Close closes the ledger.
func (l *Log) Close() error {
	return l.db.Close()
}
