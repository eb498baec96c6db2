package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/store"
)

var (
	queryCodebase string
	queryCross    bool
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run a read query scoped to one codebase",
	Long: `Run a Cypher read query with codebase scoping injected automatically.
Every MATCH pattern variable is constrained to the given codebase (plus
shared global nodes). Use --cross-codebase to bypass scoping.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryCodebase, "codebase", "", "codebase identifier (required unless --cross-codebase)")
	queryCmd.Flags().BoolVar(&queryCross, "cross-codebase", false, "run unscoped across all codebases")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit records as JSON lines")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cypher := args[0]

	if !queryCross && queryCodebase == "" {
		return fmt.Errorf("--codebase is required unless --cross-codebase is set")
	}

	client, err := store.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	defer client.Close(ctx)

	scoper := store.NewQueryScoper(client, logger)

	var result *neo4j.EagerResult
	if queryCross {
		result, err = scoper.RunCrossCodebase(ctx, cypher, nil)
	} else {
		result, err = scoper.Run(ctx, cypher, queryCodebase, nil)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	printRecords(result)
	return nil
}

func printRecords(result *neo4j.EagerResult) {
	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, record := range result.Records {
			enc.Encode(record.AsMap())
		}
		return
	}

	fmt.Println(strings.Join(result.Keys, "\t"))
	for _, record := range result.Records {
		values := make([]string, len(record.Values))
		for i, v := range record.Values {
			values[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(values, "\t"))
	}
	fmt.Printf("\n%d record(s)\n", len(result.Records))
}
