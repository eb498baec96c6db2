package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/codegraph"
)

// ConsistencyRunner executes the post-import passes against the persisted
// store (not the in-memory artifact): aggregate counter recomputation and
// ownership-edge backfill.
type ConsistencyRunner struct {
	client *Client
	logger *logrus.Logger
}

// NewConsistencyRunner creates a post-import consistency runner.
func NewConsistencyRunner(client *Client, logger *logrus.Logger) *ConsistencyRunner {
	return &ConsistencyRunner{client: client, logger: logger}
}

// aggregatePasses are the fixed recomputation queries. Each sets counters
// derived from the now-durable relationship set and returns rows touched.
var aggregatePasses = []struct {
	name   string
	cypher string
}{
	{
		name: "file import counts",
		cypher: `MATCH (f:File {codebaseId: $codebaseId})
			OPTIONAL MATCH (f)-[imp:IMPORTS]->()
			WITH f, count(imp) as imports
			SET f.importCount = imports
			RETURN count(f) as count`,
	},
	{
		name: "file export counts",
		cypher: `MATCH (f:File {codebaseId: $codebaseId})
			OPTIONAL MATCH (f)-[exp:EXPORTS_LOCAL]->()
			WITH f, count(exp) as exports
			SET f.exportCount = exports
			RETURN count(f) as count`,
	},
	{
		name: "cross-codebase import counts",
		cypher: `MATCH (f:File {codebaseId: $codebaseId})
			OPTIONAL MATCH (f)-[imp:IMPORTS {isCrossCodebase: true}]->()
			WITH f, count(imp) as crossImports
			SET f.crossCodebaseImportCount = crossImports
			RETURN count(f) as count`,
	},
	{
		name: "component render counts",
		cypher: `MATCH (c:Component {codebaseId: $codebaseId})
			OPTIONAL MATCH (c)-[r:RENDERS]->()
			WITH c, count(r) as renders
			SET c.renderCount = renders
			RETURN count(c) as count`,
	},
}

// RecomputeAggregates runs every aggregate pass for one codebase.
func (cr *ConsistencyRunner) RecomputeAggregates(ctx context.Context, codebaseID string) error {
	for _, pass := range aggregatePasses {
		result, err := cr.client.Run(ctx, pass.cypher, map[string]any{"codebaseId": codebaseID})
		if err != nil {
			return fmt.Errorf("aggregate pass %q failed: %w", pass.name, err)
		}
		cr.logger.WithFields(logrus.Fields{
			"pass": pass.name,
			"rows": scalarCount(result.Records),
		}).Info("Aggregate recomputation pass complete")
	}
	return nil
}

// BackfillOwnership finds CodeElement nodes without a DEFINED_IN edge to
// their owning File and creates it. When the element has no fileId property,
// the owner is inferred from the structured portion of the element's own id
// (<codebase>:<Label>:<filePath>#<name>); inferred backfills are logged and
// never guessed across codebases. Returns the number of edges created.
func (cr *ConsistencyRunner) BackfillOwnership(ctx context.Context, codebaseID string) (int64, error) {
	// Elements that already know their file.
	direct := `
		MATCH (e:CodeElement {codebaseId: $codebaseId})
		WHERE NOT (e)-[:DEFINED_IN]->(:File) AND e.fileId IS NOT NULL
		MATCH (f:File {id: e.fileId, codebaseId: $codebaseId})
		MERGE (e)-[r:DEFINED_IN]->(f)
		RETURN count(r) as count
	`
	result, err := cr.client.Run(ctx, direct, map[string]any{"codebaseId": codebaseID})
	if err != nil {
		return 0, fmt.Errorf("ownership backfill (direct) failed: %w", err)
	}
	created := scalarCount(result.Records)

	// Elements with no fileId at all: infer the owner from the id structure.
	orphans := `
		MATCH (e:CodeElement {codebaseId: $codebaseId})
		WHERE NOT (e)-[:DEFINED_IN]->(:File) AND e.fileId IS NULL
		RETURN e.id as id
	`
	orphanResult, err := cr.client.RunRead(ctx, orphans, map[string]any{"codebaseId": codebaseID})
	if err != nil {
		return created, fmt.Errorf("ownership backfill (orphan scan) failed: %w", err)
	}

	for _, rec := range orphanResult.Records {
		v, ok := rec.Get("id")
		if !ok {
			continue
		}
		elementID, isStr := v.(string)
		if !isStr {
			continue
		}
		fileID, ok := InferOwningFileID(elementID)
		if !ok {
			cr.logger.WithField("element", elementID).
				Warn("Cannot infer owning file from entity id; leaving unowned")
			continue
		}
		if !strings.HasPrefix(fileID, codebaseID+":") {
			// Inference must never cross into another codebase.
			continue
		}
		cr.logger.WithFields(logrus.Fields{
			"element": elementID,
			"file":    fileID,
		}).Info("Backfilling ownership edge from inferred file id")

		link := `
			MATCH (e:CodeElement {id: $elementId, codebaseId: $codebaseId})
			MATCH (f:File {id: $fileId, codebaseId: $codebaseId})
			MERGE (e)-[r:DEFINED_IN]->(f)
			RETURN count(r) as count
		`
		linkResult, err := cr.client.Run(ctx, link, map[string]any{
			"elementId":  elementID,
			"fileId":     fileID,
			"codebaseId": codebaseID,
		})
		if err != nil {
			return created, fmt.Errorf("ownership backfill for %s failed: %w", elementID, err)
		}
		created += scalarCount(linkResult.Records)
	}

	cr.logger.WithField("edges", created).Info("Ownership backfill complete")
	return created, nil
}

// InferOwningFileID derives the owning File node id from a code element id of
// the form <codebase>:<Label>:<filePath>#<name>. Best effort: returns false
// when the id does not carry a file path segment.
func InferOwningFileID(elementID string) (string, bool) {
	parts := strings.SplitN(elementID, ":", 3)
	if len(parts) != 3 {
		return "", false
	}
	qualifier := parts[2]
	hash := strings.LastIndex(qualifier, "#")
	if hash <= 0 {
		return "", false
	}
	filePath := qualifier[:hash]
	return fmt.Sprintf("%s:%s:%s", parts[0], codegraph.LabelFile, filePath), true
}
