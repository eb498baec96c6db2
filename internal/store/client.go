package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Client wraps the Neo4j driver for the ingestion pipeline. All writes go
// through a single client; the pipeline keeps at most one store call in
// flight at a time, so upsert and migration ordering stays simple.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewClient connects to Neo4j and verifies connectivity before returning.
func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return &Client{driver: driver, database: database}, nil
}

// Run executes a single parameterized query and returns the eager result.
func (c *Client) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return result, nil
}

// RunRead executes a read query routed to read replicas in cluster deployments.
func (c *Client) RunRead(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("read query failed: %w", err)
	}
	return result, nil
}

// ExecuteWrite runs fn inside one managed write transaction.
func (c *Client) ExecuteWrite(ctx context.Context, fn neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, fn)
}

// CountScalar runs a query expected to return a single integer column named
// "count".
func (c *Client) CountScalar(ctx context.Context, query string, params map[string]any) (int64, error) {
	result, err := c.RunRead(ctx, query, params)
	if err != nil {
		return 0, err
	}
	return scalarCount(result.Records), nil
}

func scalarCount(records []*db.Record) int64 {
	if len(records) == 0 {
		return 0
	}
	if v, ok := records[0].Get("count"); ok {
		if n, isInt := v.(int64); isInt {
			return n
		}
	}
	return 0
}

// Database returns the configured database name.
func (c *Client) Database() string {
	return c.database
}

// Close closes the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
