package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Ingest.AutoMigrate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
neo4j:
  uri: bolt://graph.internal:7687
  username: ingest
  password: secret
ingest:
  batch_size: 250
  strict_referential: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Neo4j.URI)
	assert.Equal(t, "ingest", cfg.Neo4j.Username)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Ingest.StrictReferential)
	assert.True(t, cfg.Ingest.AutoMigrate, "defaults persist for unset keys")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CODEGRAPH_NEO4J_URI", "bolt://override:7687")
	t.Setenv("CODEGRAPH_BATCH_SIZE", "100")
	t.Setenv("CODEGRAPH_RUN_LOG", "/tmp/runs.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bolt://override:7687", cfg.Neo4j.URI)
	assert.Equal(t, 100, cfg.Ingest.BatchSize)
	assert.Equal(t, "/tmp/runs.db", cfg.Ingest.RunLogPath)
}

func TestLoadIgnoresInvalidBatchSizeEnv(t *testing.T) {
	t.Setenv("CODEGRAPH_BATCH_SIZE", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing uri", func(c *Config) { c.Neo4j.URI = "" }},
		{"missing username", func(c *Config) { c.Neo4j.Username = "" }},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
