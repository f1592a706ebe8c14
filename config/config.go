// Package config loads the kbase command-line configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// KBASE_* environment variables (a .env file in the working directory is
// read first), and the result is validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/chunking"
	"github.com/poiesic/kbase/reembed"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KBASE_DB_PATH.
const EnvPrefix = "KBASE"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigNotFound is returned when an explicitly named file is missing.
	ErrConfigNotFound = errors.New("config file not found")
)

// Config is the root configuration of the kbase CLI.
type Config struct {
	Database DatabaseConfig  `yaml:"database" envconfig:"DB"`
	AI       ai.Config       `yaml:"ai" envconfig:"AI"`
	Chunking chunking.Config `yaml:"chunking" envconfig:"CHUNKING"`
	Index    IndexConfig     `yaml:"index" envconfig:"INDEX"`
	Search   SearchConfig    `yaml:"search" envconfig:"SEARCH"`
	Reembed  reembed.Config  `yaml:"reembed" envconfig:"REEMBED"`
}

// DatabaseConfig locates the stores.
type DatabaseConfig struct {
	// Path is the badger directory. A leading ~ is expanded.
	Path string `yaml:"path" split_words:"true"`

	// PostgresURL, when set, keeps chunk vectors in a pgvector table
	// instead of badger.
	PostgresURL string `yaml:"postgres_url" split_words:"true"`

	// VectorTable names the pgvector table.
	VectorTable string `yaml:"vector_table" split_words:"true"`
}

// IndexConfig controls which files the index command picks up.
type IndexConfig struct {
	Include []string `yaml:"include" split_words:"true"`
	Exclude []string `yaml:"exclude" split_words:"true"`
	Workers int      `yaml:"workers" split_words:"true"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	TopK          int     `yaml:"top_k" split_words:"true"`
	MinSimilarity float32 `yaml:"min_similarity" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "~/.kbase/db",
			VectorTable: "kbase_vectors",
		},
		AI:       *ai.DefaultConfig(),
		Chunking: chunking.DefaultConfig(),
		Index: IndexConfig{
			Include: []string{"**/*.md", "**/*.markdown", "**/*.txt"},
			Exclude: []string{"**/.git/**", "**/node_modules/**"},
			Workers: 4,
		},
		Search: SearchConfig{
			TopK:          5,
			MinSimilarity: -1,
		},
		Reembed: *reembed.DefaultConfig(),
	}
}

// Load builds the configuration. path may be empty to skip the YAML layer;
// a non-empty path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and normalizes the AI settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, pattern := range slices.Concat(c.Index.Include, c.Index.Exclude) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: bad file pattern %q", ErrInvalidConfig, pattern)
		}
	}
	if len(c.Index.Include) == 0 {
		return fmt.Errorf("%w: at least one include pattern is required", ErrInvalidConfig)
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("%w: index workers must be positive, got %d", ErrInvalidConfig, c.Index.Workers)
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("%w: search top_k must be positive, got %d", ErrInvalidConfig, c.Search.TopK)
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("%w: min similarity must be within [-1, 1], got %v", ErrInvalidConfig, c.Search.MinSimilarity)
	}
	if c.Reembed.BatchSize < 1 || c.Reembed.ReportInterval < 1 || c.Reembed.MaxRetries < 1 {
		return fmt.Errorf("%w: reembed batch size, report interval and max retries must be positive", ErrInvalidConfig)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
