package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// MigrationStep is one statement of a version transition. Every step's Cypher
// must RETURN a single integer column named "count" reporting rows touched.
type MigrationStep struct {
	Name   string
	Cypher string
}

// migrations is the per-version strategy table: steps that migrate persisted
// entities FROM the keyed schema version to the next one. All versions,
// generic cleanups included, go through this one table; there is no separate
// non-versioned path.
var migrations = map[int][]MigrationStep{
	1: {
		{
			Name: "rename legacy tenant property to codebaseId",
			Cypher: `MATCH (n) WHERE n.schemaVersion = 1 AND n.tenantId IS NOT NULL
				SET n.codebaseId = n.tenantId
				REMOVE n.tenantId
				RETURN count(n) as count`,
		},
		{
			Name: "stamp nodes to version 2",
			Cypher: `MATCH (n) WHERE n.schemaVersion = 1
				SET n.schemaVersion = 2
				RETURN count(n) as count`,
		},
	},
	2: {
		{
			Name: "backfill empty dependency weights",
			Cypher: `MATCH ()-[r:DEPENDS_ON]->() WHERE r.weight IS NULL
				SET r.weight = 1
				RETURN count(r) as count`,
		},
		{
			Name: "normalize strength casing on dependency edges",
			Cypher: `MATCH ()-[r:DEPENDS_ON]->() WHERE r.strength IN ['STRONG', 'WEAK']
				SET r.strength = toLower(r.strength)
				RETURN count(r) as count`,
		},
		{
			Name: "stamp nodes to version 3",
			Cypher: `MATCH (n) WHERE n.schemaVersion = 2
				SET n.schemaVersion = 3
				RETURN count(n) as count`,
		},
	},
}

// MigrationResult reports one completed version transition.
type MigrationResult struct {
	FromVersion   int
	StepCounts    map[string]int64
	TotalAffected int64
}

// Migrator checks persisted entities for stale schema versions and executes
// the per-version step lists. Each source version runs in exactly one
// transaction: a step failure rolls back that version's changes only,
// leaving earlier completed versions committed.
type Migrator struct {
	client *Client
	schema *Schema
	logger *logrus.Logger
}

// NewMigrator creates a migration runner.
func NewMigrator(client *Client, schema *Schema, logger *logrus.Logger) *Migrator {
	return &Migrator{client: client, schema: schema, logger: logger}
}

// PendingVersions returns the distinct schema versions older than the current
// one found on persisted entities, ascending. Empty means no migration is
// needed.
func (m *Migrator) PendingVersions(ctx context.Context) ([]int, error) {
	query := `MATCH (n) WHERE n.schemaVersion IS NOT NULL AND n.schemaVersion < $current
		RETURN DISTINCT n.schemaVersion as version ORDER BY version`
	result, err := m.client.RunRead(ctx, query, map[string]any{"current": m.schema.Version})
	if err != nil {
		return nil, fmt.Errorf("failed to detect pending migrations: %w", err)
	}

	var versions []int
	for _, rec := range result.Records {
		if v, ok := rec.Get("version"); ok {
			if n, isInt := v.(int64); isInt {
				versions = append(versions, int(n))
			}
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// MigrationPlan returns the ordered version transitions needed to bring
// entities at the given stale versions up to current. Each transition only
// advances entities one version, so the plan cascades: every version from
// the oldest stale one through current-1 must run, in order. Versions with
// no entities are included anyway; their steps are guarded no-ops.
func MigrationPlan(pending []int, current int) ([]int, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	oldest := pending[0]
	for _, v := range pending {
		if v < oldest {
			oldest = v
		}
	}
	var plan []int
	for v := oldest; v < current; v++ {
		if _, ok := migrations[v]; !ok {
			return nil, fmt.Errorf("no migration path from schema version %d", v)
		}
		plan = append(plan, v)
	}
	return plan, nil
}

// Migrate walks every pending entity up to the current schema version,
// running the cascade of per-version transitions in ascending order. On a
// failure it returns the error for that transition; transitions already
// completed stay committed, and a re-check of PendingVersions afterward
// still reports the failed version as requiring migration. A successful
// return means PendingVersions is empty.
func (m *Migrator) Migrate(ctx context.Context) ([]MigrationResult, error) {
	pending, err := m.PendingVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		m.logger.Info("No schema migrations pending")
		return nil, nil
	}

	plan, err := MigrationPlan(pending, m.schema.Version)
	if err != nil {
		return nil, err
	}

	var results []MigrationResult
	for _, version := range plan {
		result, err := m.migrateVersion(ctx, version, migrations[version])
		if err != nil {
			return results, fmt.Errorf("migration from version %d failed (rolled back): %w", version, err)
		}
		results = append(results, result)
		m.logger.WithFields(logrus.Fields{
			"from_version": version,
			"affected":     result.TotalAffected,
		}).Info("Schema migration completed")
	}
	return results, nil
}

// migrateVersion executes one version's step list inside a single managed
// write transaction.
func (m *Migrator) migrateVersion(ctx context.Context, version int, steps []MigrationStep) (MigrationResult, error) {
	result := MigrationResult{
		FromVersion: version,
		StepCounts:  make(map[string]int64, len(steps)),
	}

	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, step := range steps {
			res, err := tx.Run(ctx, step.Cypher, nil)
			if err != nil {
				return nil, fmt.Errorf("step %q failed: %w", step.Name, err)
			}
			count := int64(0)
			if res.Next(ctx) {
				if v, ok := res.Record().Get("count"); ok {
					if n, isInt := v.(int64); isInt {
						count = n
					}
				}
			}
			if err := res.Err(); err != nil {
				return nil, fmt.Errorf("step %q failed: %w", step.Name, err)
			}
			result.StepCounts[step.Name] = count
			result.TotalAffected += count
			m.logger.WithFields(logrus.Fields{
				"from_version": version,
				"step":         step.Name,
				"rows":         count,
			}).Debug("Migration step applied")
		}
		return nil, nil
	})
	if err != nil {
		return MigrationResult{FromVersion: version}, err
	}
	return result, nil
}

// MigrationPath returns the declared step names for a source version, for
// operator display. False when no path exists.
func MigrationPath(fromVersion int) ([]string, bool) {
	steps, ok := migrations[fromVersion]
	if !ok {
		return nil, false
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names, true
}
