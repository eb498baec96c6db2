package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/pipeline"
	"github.com/codegraph/codegraph-go/internal/runlog"
	"github.com/codegraph/codegraph-go/internal/store"
)

var (
	ingestCodebase  string
	ingestInput     string
	ingestOutput    string
	ingestBatchSize int
	ingestSkipSoft  bool
	ingestStrict    bool
	ingestNoMigrate bool
	ingestBackup    bool
	ingestReplay    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Merge parser fragments into the graph and persist them",
	Long: `Load per-file parser fragments, merge them into one deduplicated graph,
resolve placeholder references, derive dependency edges, validate, and
import the result into Neo4j under the given codebase.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCodebase, "codebase", "", "codebase identifier (required)")
	ingestCmd.Flags().StringVar(&ingestInput, "input", "", "directory of fragment JSON files")
	ingestCmd.Flags().StringVar(&ingestOutput, "output", "", "checkpoint output directory (required)")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "import batch size (default from config)")
	ingestCmd.Flags().BoolVar(&ingestSkipSoft, "skip-soft-validation", false, "skip referential integrity warnings")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "treat dangling references as fatal")
	ingestCmd.Flags().BoolVar(&ingestNoMigrate, "no-auto-migrate", false, "fail on schema drift instead of migrating")
	ingestCmd.Flags().BoolVar(&ingestBackup, "backup", false, "export a JSON backup before migrating")
	ingestCmd.Flags().BoolVar(&ingestReplay, "replay", false, "re-import from an existing checkpoint, skipping graph construction")
	ingestCmd.MarkFlagRequired("codebase")
	ingestCmd.MarkFlagRequired("output")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !ingestReplay && ingestInput == "" {
		return fmt.Errorf("--input is required unless --replay is set")
	}
	if ingestBatchSize > 0 {
		cfg.Ingest.BatchSize = ingestBatchSize
	}
	if ingestSkipSoft {
		cfg.Ingest.SkipSoftValidation = true
	}
	if ingestStrict {
		cfg.Ingest.StrictReferential = true
	}
	if ingestNoMigrate {
		cfg.Ingest.AutoMigrate = false
	}
	if ingestBackup {
		cfg.Ingest.BackupBeforeMigrate = true
	}

	client, err := store.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	defer client.Close(ctx)

	p := pipeline.New(client, cfg, logger)
	opts := pipeline.Options{
		CodebaseID: ingestCodebase,
		InputDir:   ingestInput,
		OutputDir:  ingestOutput,
	}

	var result *pipeline.Result
	if ingestReplay {
		result, err = p.Replay(ctx, opts)
	} else {
		result, err = p.Run(ctx, opts)
	}

	// Record the run outcome even on failure so history shows it.
	if result != nil {
		if log, logErr := runlog.Open(cfg.Ingest.RunLogPath); logErr == nil {
			if recErr := log.Record(result); recErr != nil {
				logger.WithError(recErr).Warn("Failed to record run")
			}
			log.Close()
		} else {
			logger.WithError(logErr).Warn("Failed to open run log")
		}
	}
	return err
}
