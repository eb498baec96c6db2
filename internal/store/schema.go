package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaDocument []byte

// SchemaConstraint declares a uniqueness constraint on a label property.
type SchemaConstraint struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
}

// SchemaIndex declares a lookup index on a label property.
type SchemaIndex struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
}

// FulltextIndex declares a full-text index over labels and properties.
type FulltextIndex struct {
	Name       string   `yaml:"name"`
	Labels     []string `yaml:"labels"`
	Properties []string `yaml:"properties"`
}

// Schema is the versioned schema-metadata document driving provisioning,
// verification, and migration detection.
type Schema struct {
	Version           int                `yaml:"version"`
	NodeLabels        []string           `yaml:"nodeLabels"`
	RelationshipTypes []string           `yaml:"relationshipTypes"`
	Constraints       []SchemaConstraint `yaml:"constraints"`
	Indexes           []SchemaIndex      `yaml:"indexes"`
	FulltextIndexes   []FulltextIndex    `yaml:"fulltextIndexes"`
}

// LoadSchema parses the embedded schema document.
func LoadSchema() (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(schemaDocument, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	if s.Version <= 0 {
		return nil, fmt.Errorf("schema document missing version")
	}
	return &s, nil
}

// SchemaManager provisions and verifies store-side schema objects.
type SchemaManager struct {
	client *Client
	schema *Schema
	logger *logrus.Logger
}

// NewSchemaManager creates a schema manager for the given client.
func NewSchemaManager(client *Client, schema *Schema, logger *logrus.Logger) *SchemaManager {
	return &SchemaManager{client: client, schema: schema, logger: logger}
}

// Provision creates the declared constraints and indexes using IF NOT EXISTS
// semantics; it is safe to re-run. Full-text indexes are optional: a store
// without full-text support logs the failure and continues.
func (m *SchemaManager) Provision(ctx context.Context) error {
	for _, c := range m.schema.Constraints {
		if !isValidIdentifier(c.Label) || !isValidIdentifier(c.Property) {
			return fmt.Errorf("invalid constraint declaration %q", c.Name)
		}
		query := fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			sanitizeLabel(c.Name), c.Label, c.Property)
		if _, err := m.client.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create constraint %s: %w", c.Name, err)
		}
	}

	for _, idx := range m.schema.Indexes {
		if !isValidIdentifier(idx.Label) || !isValidIdentifier(idx.Property) {
			return fmt.Errorf("invalid index declaration %q", idx.Name)
		}
		query := fmt.Sprintf(
			"CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)",
			sanitizeLabel(idx.Name), idx.Label, idx.Property)
		if _, err := m.client.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}

	for _, ft := range m.schema.FulltextIndexes {
		query, err := fulltextIndexQuery(ft)
		if err != nil {
			return err
		}
		if _, err := m.client.Run(ctx, query, nil); err != nil {
			m.logger.WithError(err).WithField("index", ft.Name).
				Warn("Full-text index creation failed; continuing without it")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"constraints": len(m.schema.Constraints),
		"indexes":     len(m.schema.Indexes),
		"fulltext":    len(m.schema.FulltextIndexes),
	}).Info("Schema provisioned")
	return nil
}

// fulltextIndexQuery renders the CREATE FULLTEXT INDEX statement for one
// declared full-text index.
func fulltextIndexQuery(ft FulltextIndex) (string, error) {
	labels := make([]string, len(ft.Labels))
	for i, l := range ft.Labels {
		if !isValidIdentifier(l) {
			return "", fmt.Errorf("invalid full-text label %q in %s", l, ft.Name)
		}
		labels[i] = l
	}
	props := make([]string, len(ft.Properties))
	for i, p := range ft.Properties {
		if !isValidIdentifier(p) {
			return "", fmt.Errorf("invalid full-text property %q in %s", p, ft.Name)
		}
		props[i] = "n." + p
	}
	return fmt.Sprintf(
		"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [%s]",
		sanitizeLabel(ft.Name),
		strings.Join(labels, "|"),
		strings.Join(props, ", "),
	), nil
}

// Verify checks that every declared constraint exists in the store. Missing
// constraints fail verification; missing optional indexes only warn.
func (m *SchemaManager) Verify(ctx context.Context) error {
	result, err := m.client.RunRead(ctx, "SHOW CONSTRAINTS YIELD name RETURN name", nil)
	if err != nil {
		return fmt.Errorf("failed to list constraints: %w", err)
	}
	existing := make(map[string]bool)
	for _, rec := range result.Records {
		if name, ok := rec.Get("name"); ok {
			if s, isStr := name.(string); isStr {
				existing[s] = true
			}
		}
	}
	for _, c := range m.schema.Constraints {
		if !existing[c.Name] {
			return fmt.Errorf("schema verification failed: constraint %s missing", c.Name)
		}
	}

	idxResult, err := m.client.RunRead(ctx, "SHOW INDEXES YIELD name RETURN name", nil)
	if err != nil {
		m.logger.WithError(err).Warn("Could not list indexes for verification")
		return nil
	}
	existingIdx := make(map[string]bool)
	for _, rec := range idxResult.Records {
		if name, ok := rec.Get("name"); ok {
			if s, isStr := name.(string); isStr {
				existingIdx[s] = true
			}
		}
	}
	for _, idx := range m.schema.Indexes {
		if !existingIdx[idx.Name] {
			m.logger.WithField("index", idx.Name).Warn("Declared index missing from store")
		}
	}
	return nil
}

// ProvisionCodebase merges the per-codebase metadata node carrying the
// current schema version and last-ingest timestamp.
func (m *SchemaManager) ProvisionCodebase(ctx context.Context, codebaseID string) error {
	query := `
		MERGE (c:Codebase {id: $id})
		SET c.codebaseId = $id,
		    c.schemaVersion = $version,
		    c.lastIngestedAt = $now
		RETURN c.id
	`
	_, err := m.client.Run(ctx, query, map[string]any{
		"id":      codebaseID,
		"version": m.schema.Version,
		"now":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to provision codebase %s: %w", codebaseID, err)
	}
	return nil
}
