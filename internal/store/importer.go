package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/codegraph"
)

// DefaultBatchSize is the upsert batch size when none is configured. Smaller
// batches trade throughput for finer-grained progress and failure isolation.
const DefaultBatchSize = 500

// Importer loads a merged graph into the store with idempotent merge-by-id
// upserts. A failed batch aborts the import and surfaces the error; batches
// already committed stay committed, and a retried run converges because
// every write is an upsert.
type Importer struct {
	client    *Client
	schema    *Schema
	logger    *logrus.Logger
	batchSize int

	// apocUnavailable is set after the first failed dynamic-label call so the
	// remaining batches skip label sync instead of failing.
	apocUnavailable bool
}

// NewImporter creates a batched import engine.
func NewImporter(client *Client, schema *Schema, logger *logrus.Logger, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{client: client, schema: schema, logger: logger, batchSize: batchSize}
}

// ImportStats summarizes a persistence run.
type ImportStats struct {
	Nodes             int
	Relationships     int
	Stubs             int
	PropertiesSkipped int
}

// ImportNodes upserts every node in fixed-size batches, grouped by primary
// label so each batch is a single UNWIND...MERGE statement.
func (im *Importer) ImportNodes(ctx context.Context, nodes []*codegraph.Node) (ImportStats, error) {
	stats := ImportStats{}
	byLabel := make(map[string][]*codegraph.Node)
	labelOrder := []string{}
	for _, n := range nodes {
		label := primaryLabel(n.Labels)
		if _, seen := byLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		byLabel[label] = append(byLabel[label], n)
	}

	for _, label := range labelOrder {
		group := byLabel[label]
		if !isValidIdentifier(label) {
			return stats, fmt.Errorf("invalid node label %q", label)
		}
		for start := 0; start < len(group); start += im.batchSize {
			end := start + im.batchSize
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]

			rows := make([]map[string]any, len(batch))
			extraLabels := []map[string]any{}
			for i, n := range batch {
				props, skipped := im.sanitizeProperties(n.ID, n.Properties)
				props["id"] = n.ID
				props["codebaseId"] = n.CodebaseID
				props["schemaVersion"] = im.schema.Version
				props["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
				stats.PropertiesSkipped += skipped
				rows[i] = map[string]any{"id": n.ID, "props": props}

				if len(n.Labels) > 1 {
					extraLabels = append(extraLabels, map[string]any{
						"id":     n.ID,
						"labels": secondaryLabels(n.Labels, label),
					})
				}
			}

			query := fmt.Sprintf(`
				UNWIND $nodes AS node
				MERGE (n:%s {id: node.id})
				SET n += node.props
				RETURN count(n) as count
			`, label)
			if _, err := im.client.Run(ctx, query, map[string]any{"nodes": rows}); err != nil {
				return stats, fmt.Errorf("node batch %d-%d (%s) failed: %w", start, end, label, err)
			}
			stats.Nodes += len(batch)

			im.syncLabels(ctx, label, extraLabels)

			im.logger.WithFields(logrus.Fields{
				"label":    label,
				"imported": stats.Nodes,
				"total":    len(nodes),
			}).Debug("Node batch imported")
		}
	}

	im.logger.WithFields(logrus.Fields{
		"nodes":         stats.Nodes,
		"props_skipped": stats.PropertiesSkipped,
	}).Info("Node import complete")
	return stats, nil
}

// syncLabels applies secondary labels through the store's dynamic-label
// extension. Stores without the extension degrade to a logged skip; label
// sync is an enrichment, not a correctness requirement.
func (im *Importer) syncLabels(ctx context.Context, primary string, rows []map[string]any) {
	if len(rows) == 0 || im.apocUnavailable {
		return
	}
	query := fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (n:%s {id: row.id})
		CALL apoc.create.addLabels(n, row.labels) YIELD node
		RETURN count(node) as count
	`, primary)
	if _, err := im.client.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
		if apocMissing(err) {
			im.apocUnavailable = true
			im.logger.WithError(err).
				Warn("Dynamic label extension unavailable; skipping secondary label sync")
			return
		}
		im.logger.WithError(err).Warn("Secondary label sync failed for batch")
	}
}

// ImportRelationships upserts every relationship in fixed-size batches,
// grouped by type. Relationships still carrying an unresolved marker get a
// stub placeholder node merged first and are re-targeted at it, so the
// target always exists post-import.
func (im *Importer) ImportRelationships(ctx context.Context, rels []*codegraph.Relationship) (ImportStats, error) {
	stats := ImportStats{}

	stubs, retargeted := im.materializeStubs(rels)
	if len(stubs) > 0 {
		stubStats, err := im.ImportNodes(ctx, stubs)
		if err != nil {
			return stats, fmt.Errorf("failed to import unresolved stubs: %w", err)
		}
		stats.Stubs = stubStats.Nodes
	}

	byType := make(map[string][]*codegraph.Relationship)
	typeOrder := []string{}
	for _, r := range retargeted {
		if _, seen := byType[r.Type]; !seen {
			typeOrder = append(typeOrder, r.Type)
		}
		byType[r.Type] = append(byType[r.Type], r)
	}

	for _, relType := range typeOrder {
		group := byType[relType]
		if !isValidIdentifier(relType) {
			return stats, fmt.Errorf("invalid relationship type %q", relType)
		}
		for start := 0; start < len(group); start += im.batchSize {
			end := start + im.batchSize
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]

			rows := make([]map[string]any, len(batch))
			for i, r := range batch {
				props, skipped := im.sanitizeProperties(r.ID, r.Properties)
				props["id"] = r.ID
				props["codebaseId"] = r.CodebaseID
				props["schemaVersion"] = im.schema.Version
				stats.PropertiesSkipped += skipped
				for k, v := range relationshipMarkers(r) {
					props[k] = v
				}
				rows[i] = map[string]any{
					"id":       r.ID,
					"sourceId": r.SourceID,
					"targetId": r.TargetID,
					"props":    props,
				}
			}

			query := fmt.Sprintf(`
				UNWIND $rels AS rel
				MATCH (from {id: rel.sourceId})
				MATCH (to {id: rel.targetId})
				MERGE (from)-[r:%s {id: rel.id}]->(to)
				SET r += rel.props
				RETURN count(r) as count
			`, relType)
			result, err := im.client.Run(ctx, query, map[string]any{"rels": rows})
			if err != nil {
				return stats, fmt.Errorf("relationship batch %d-%d (%s) failed: %w", start, end, relType, err)
			}
			created := scalarCount(result.Records)
			if created < int64(len(batch)) {
				im.logger.WithFields(logrus.Fields{
					"type":    relType,
					"created": created,
					"batch":   len(batch),
				}).Warn("Some relationship endpoints were not found in the store")
			}
			stats.Relationships += len(batch)
		}
	}

	im.logger.WithFields(logrus.Fields{
		"relationships": stats.Relationships,
		"stubs":         stats.Stubs,
	}).Info("Relationship import complete")
	return stats, nil
}

// materializeStubs builds one stub node per distinct unresolved placeholder
// and returns import-ready relationship rows re-targeted at the stubs. The
// original placeholder value is preserved on the relationship.
func (im *Importer) materializeStubs(rels []*codegraph.Relationship) ([]*codegraph.Node, []*codegraph.Relationship) {
	stubsByID := make(map[string]*codegraph.Node)
	order := []string{}
	out := make([]*codegraph.Relationship, 0, len(rels))

	for _, r := range rels {
		if !r.Unresolved() {
			out = append(out, r)
			continue
		}

		label := codegraph.LabelUnresolvedImport
		switch {
		case r.UnresolvedComponent:
			label = codegraph.LabelUnresolvedComponent
		case r.UnresolvedComposable:
			label = codegraph.LabelUnresolvedComposable
		}
		stubID := fmt.Sprintf("%s:%s:%s", r.CodebaseID, label, r.TargetID)
		if _, seen := stubsByID[stubID]; !seen {
			stubsByID[stubID] = &codegraph.Node{
				ID:         stubID,
				CodebaseID: r.CodebaseID,
				Labels:     []string{label},
				Properties: map[string]any{"name": r.TargetID, "stub": true},
			}
			order = append(order, stubID)
		}

		clone := *r
		clone.Properties = cloneProps(r.Properties)
		clone.Properties["unresolvedTarget"] = r.TargetID
		clone.TargetID = stubID
		out = append(out, &clone)
	}

	stubs := make([]*codegraph.Node, len(order))
	for i, id := range order {
		stubs[i] = stubsByID[id]
	}
	return stubs, out
}

// sanitizeProperties flattens values the store's primitive/array-of-primitive
// property model cannot hold. Non-map composites are serialized to a JSON
// string; associative maps are dropped with a log line and counted, leaving
// the rest of the entity importable. Scalars and lists are normalized so a
// graph replayed from a JSON checkpoint, where every number decodes as
// float64 and every list as []any, stores the same values as a direct run.
func (im *Importer) sanitizeProperties(entityID string, props map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(props)+4)
	skipped := 0
	for key, value := range props {
		if !isValidIdentifier(key) {
			im.logger.WithFields(logrus.Fields{
				"entity":   entityID,
				"property": key,
			}).Warn("Skipping property with unsafe key")
			skipped++
			continue
		}
		switch v := value.(type) {
		case nil:
			continue
		case time.Time:
			out[key] = v.UTC().Format(time.RFC3339)
		case map[string]any:
			im.logger.WithFields(logrus.Fields{
				"entity":   entityID,
				"property": key,
			}).Warn("Skipping unsupported map-valued property")
			skipped++
		default:
			if scalar, ok := normalizeScalar(value); ok {
				out[key] = scalar
				continue
			}
			if list, ok := normalizeList(value); ok {
				out[key] = list
				continue
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				im.logger.WithFields(logrus.Fields{
					"entity":   entityID,
					"property": key,
				}).Warn("Skipping unserializable property")
				skipped++
				continue
			}
			out[key] = string(encoded)
		}
	}
	return out, skipped
}

// normalizeScalar maps a primitive value onto its canonical stored type.
// Integers widen to int64; float64 values that are exactly integral become
// int64, because JSON decoding turns every checkpoint number into float64
// and the original value was an int whenever no fraction survives.
func normalizeScalar(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float32:
		return normalizeScalar(float64(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v), true
		}
		return v, true
	default:
		return nil, false
	}
}

// normalizeList canonicalizes primitive lists, coercing the []any a JSON
// checkpoint round-trip produces element-wise. Lists with any non-primitive
// element are rejected and fall through to JSON encoding.
func normalizeList(value any) (any, bool) {
	switch v := value.(type) {
	case []string, []bool:
		return v, true
	case []int64:
		return v, true
	case []int:
		out := make([]int64, len(v))
		for i, e := range v {
			out[i] = int64(e)
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i], _ = normalizeScalar(e)
		}
		return out, true
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			scalar, ok := normalizeScalar(e)
			if !ok {
				return nil, false
			}
			out[i] = scalar
		}
		return out, true
	default:
		return nil, false
	}
}

// relationshipMarkers flattens cross-codebase and unresolved markers into
// store properties so they stay queryable.
func relationshipMarkers(r *codegraph.Relationship) map[string]any {
	markers := map[string]any{}
	if r.IsCrossCodebase {
		markers["isCrossCodebase"] = true
		markers["sourceCodebaseId"] = r.SourceCodebaseID
		markers["targetCodebaseId"] = r.TargetCodebaseID
	}
	if r.UnresolvedComponent {
		markers["unresolvedComponent"] = true
	}
	if r.UnresolvedComposable {
		markers["unresolvedComposable"] = true
	}
	if r.UnresolvedImport {
		markers["unresolvedImport"] = true
	}
	return markers
}

// primaryLabel picks the MERGE label for a node: the first label that is not
// the CodeElement marker, falling back to CodeElement for marker-only nodes.
func primaryLabel(labels []string) string {
	for _, l := range labels {
		if l != codegraph.LabelCodeElement {
			return l
		}
	}
	return codegraph.LabelCodeElement
}

func secondaryLabels(labels []string, primary string) []string {
	out := make([]string, 0, len(labels)-1)
	for _, l := range labels {
		if l != primary && isValidIdentifier(l) {
			out = append(out, l)
		}
	}
	return out
}

func cloneProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}

// apocMissing reports whether an error indicates the dynamic-label procedure
// is not installed.
func apocMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no procedure") || strings.Contains(msg, "unknown procedure")
}
