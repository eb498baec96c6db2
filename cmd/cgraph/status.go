package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/runlog"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and recent ingestion runs",
	Long:  `Display the active configuration and the most recent ingestion runs from the local run log.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Printf("CodeGraph Status\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Neo4j URI: %s\n", cfg.Neo4j.URI)
	fmt.Printf("  Database: %s\n", cfg.Neo4j.Database)
	fmt.Printf("  Batch size: %d\n", cfg.Ingest.BatchSize)
	fmt.Printf("  Run log: %s\n", cfg.Ingest.RunLogPath)

	log, err := runlog.Open(cfg.Ingest.RunLogPath)
	if err != nil {
		fmt.Printf("\nRuns: none recorded (run 'cgraph ingest')\n")
		return nil
	}
	defer log.Close()

	runs, err := log.Recent(statusLimit)
	if err != nil {
		return fmt.Errorf("failed to read run log: %w", err)
	}
	if len(runs) == 0 {
		fmt.Printf("\nRuns: none recorded (run 'cgraph ingest')\n")
		return nil
	}

	fmt.Printf("\nRecent runs:\n")
	for _, r := range runs {
		fmt.Printf("  %s  %-10s %-12s nodes=%d rels=%d derived=%d stubs=%d (%s)\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.CodebaseID, r.Status,
			r.Nodes, r.Relationships, r.DerivedEdges, r.Stubs,
			r.Duration.Round(time.Millisecond))
	}
	return nil
}
