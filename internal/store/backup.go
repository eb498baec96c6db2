package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// backupPageSize bounds how many entities one export query pulls at a time.
const backupPageSize = 1000

// ExportBackup writes every persisted node and relationship to a timestamped
// JSON file in the output directory. Run before migration when the caller
// enables the backup toggle.
func ExportBackup(ctx context.Context, client *Client, outputDir string, logger *logrus.Logger) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	path := filepath.Join(outputDir, fmt.Sprintf("backup_%s.json", time.Now().UTC().Format("20060102_150405")))

	backup := struct {
		ExportedAt    string           `json:"exportedAt"`
		Nodes         []map[string]any `json:"nodes"`
		Relationships []map[string]any `json:"relationships"`
	}{ExportedAt: time.Now().UTC().Format(time.RFC3339)}

	for skip := 0; ; skip += backupPageSize {
		result, err := client.RunRead(ctx,
			"MATCH (n) RETURN labels(n) as labels, properties(n) as props ORDER BY n.id SKIP $skip LIMIT $limit",
			map[string]any{"skip": skip, "limit": backupPageSize})
		if err != nil {
			return "", fmt.Errorf("backup node export failed at offset %d: %w", skip, err)
		}
		for _, rec := range result.Records {
			row := map[string]any{}
			if labels, ok := rec.Get("labels"); ok {
				row["labels"] = labels
			}
			if props, ok := rec.Get("props"); ok {
				row["properties"] = props
			}
			backup.Nodes = append(backup.Nodes, row)
		}
		if len(result.Records) < backupPageSize {
			break
		}
	}

	for skip := 0; ; skip += backupPageSize {
		result, err := client.RunRead(ctx,
			`MATCH (from)-[r]->(to)
			 RETURN type(r) as type, properties(r) as props, from.id as sourceId, to.id as targetId
			 ORDER BY r.id SKIP $skip LIMIT $limit`,
			map[string]any{"skip": skip, "limit": backupPageSize})
		if err != nil {
			return "", fmt.Errorf("backup relationship export failed at offset %d: %w", skip, err)
		}
		for _, rec := range result.Records {
			row := map[string]any{}
			for _, key := range []string{"type", "props", "sourceId", "targetId"} {
				if v, ok := rec.Get(key); ok {
					row[key] = v
				}
			}
			backup.Relationships = append(backup.Relationships, row)
		}
		if len(result.Records) < backupPageSize {
			break
		}
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":          path,
		"nodes":         len(backup.Nodes),
		"relationships": len(backup.Relationships),
	}).Info("Pre-migration backup exported")
	return path, nil
}

// CountCodebaseEntities returns the number of persisted nodes belonging to
// one codebase, used by the run summary after import.
func CountCodebaseEntities(ctx context.Context, client *Client, codebaseID string) (int64, error) {
	return client.CountScalar(ctx,
		"MATCH (n {codebaseId: $codebaseId}) RETURN count(n) as count",
		map[string]any{"codebaseId": codebaseID})
}
