package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/store"
)

var (
	migrateDryRun bool
	migrateBackup bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade persisted entities to the current schema version",
	Long: `Check stored nodes for stale schema versions and run the migration
steps for each pending version, oldest first. Each version transition runs
in a single transaction and rolls back on failure.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "show pending migrations without running them")
	migrateCmd.Flags().BoolVar(&migrateBackup, "backup", false, "export a JSON backup before migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	schema, err := store.LoadSchema()
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	client, err := store.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	defer client.Close(ctx)

	migrator := store.NewMigrator(client, schema, logger)

	pending, err := migrator.PendingVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to check schema versions: %w", err)
	}
	if len(pending) == 0 {
		fmt.Printf("Schema is up to date (version %d)\n", schema.Version)
		return nil
	}

	plan, err := store.MigrationPlan(pending, schema.Version)
	if err != nil {
		return err
	}
	fmt.Printf("Pending migrations (current version %d):\n", schema.Version)
	for _, version := range plan {
		steps, _ := store.MigrationPath(version)
		fmt.Printf("  from version %d:\n", version)
		for _, step := range steps {
			fmt.Printf("    - %s\n", step)
		}
	}

	if migrateDryRun {
		return nil
	}

	if migrateBackup {
		path, err := store.ExportBackup(ctx, client, ".", logger)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup written to %s\n", path)
	}

	results, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("Migrated from version %d: %d entities affected\n", r.FromVersion, r.TotalAffected)
	}
	return nil
}
