package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all run configuration for the ingestion pipeline.
type Config struct {
	// Neo4j connection settings.
	Neo4j Neo4jConfig `yaml:"neo4j" mapstructure:"neo4j"`

	// Ingest settings.
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
}

// Neo4jConfig describes the downstream graph store.
type Neo4jConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// IngestConfig holds pipeline tunables. CodebaseID and OutputDir are
// mandatory run parameters supplied per invocation, not here.
type IngestConfig struct {
	BatchSize           int    `yaml:"batch_size" mapstructure:"batch_size"`
	SkipSoftValidation  bool   `yaml:"skip_soft_validation" mapstructure:"skip_soft_validation"`
	StrictReferential   bool   `yaml:"strict_referential" mapstructure:"strict_referential"`
	AutoMigrate         bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
	BackupBeforeMigrate bool   `yaml:"backup_before_migrate" mapstructure:"backup_before_migrate"`
	ProjectRoot         string `yaml:"project_root" mapstructure:"project_root"`
	RunLogPath          string `yaml:"run_log_path" mapstructure:"run_log_path"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Ingest: IngestConfig{
			BatchSize:   500,
			AutoMigrate: true,
			RunLogPath:  filepath.Join(homeDir, ".codegraph", "runs.db"),
		},
	}
}

// Load loads configuration from an optional YAML file, .env files, and
// CODEGRAPH_* environment variables, lowest to highest precedence.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("ingest", cfg.Ingest)

	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codegraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codegraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; defaults plus env apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".codegraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("CODEGRAPH_NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("CODEGRAPH_NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if pass := os.Getenv("CODEGRAPH_NEO4J_PASSWORD"); pass != "" {
		cfg.Neo4j.Password = pass
	}
	if db := os.Getenv("CODEGRAPH_NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if size := os.Getenv("CODEGRAPH_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Ingest.BatchSize = n
		}
	}
	if root := os.Getenv("CODEGRAPH_PROJECT_ROOT"); root != "" {
		cfg.Ingest.ProjectRoot = root
	}
	if path := os.Getenv("CODEGRAPH_RUN_LOG"); path != "" {
		cfg.Ingest.RunLogPath = path
	}
}

// Validate checks that the configuration can support a run.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j uri is required")
	}
	if c.Neo4j.Username == "" {
		return fmt.Errorf("neo4j username is required")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Ingest.BatchSize)
	}
	return nil
}
