package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/kbase/chunking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kbase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, chunking.DefaultMaxTokensPerChunk, cfg.Chunking.MaxTokensPerChunk)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, float32(-1), cfg.Search.MinSimilarity)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".kbase", "db"), cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
database:
  path: /var/lib/kbase
ai:
  embedding_host: http://embed.internal:8080
  embedding_model: nomic-embed-text
  embedding_dimension: 768
chunking:
  max_tokens_per_chunk: 64
index:
  include: ["docs/**/*.md"]
reembed:
  retry_delay: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/kbase", cfg.Database.Path)
	assert.Equal(t, "http://embed.internal:8080/v1", cfg.AI.EmbeddingHost, "host is normalized")
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
	assert.Equal(t, 768, cfg.AI.EmbeddingDimension)
	assert.Equal(t, "cl100k_base", cfg.AI.TokenizerEncoding, "unset keys keep defaults")
	assert.Equal(t, 64, cfg.Chunking.MaxTokensPerChunk)
	assert.Equal(t, chunking.DefaultMaxTokensPerSection, cfg.Chunking.MaxTokensPerSection)
	assert.Equal(t, []string{"docs/**/*.md"}, cfg.Index.Include)
	assert.Equal(t, 250*time.Millisecond, cfg.Reembed.RetryDelay)
	assert.Equal(t, 100, cfg.Reembed.BatchSize)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, `
database:
  path: /from/file
search:
  top_k: 3
`)
	t.Setenv("KBASE_DB_PATH", "/from/env")
	t.Setenv("KBASE_AI_EMBEDDING_MODEL", "mxbai-embed-large")
	t.Setenv("KBASE_CHUNKING_SHIFT_SIGMA", "1.5")
	t.Setenv("KBASE_INDEX_EXCLUDE", "**/drafts/**,**/*.tmp")
	t.Setenv("KBASE_SEARCH_MIN_SIMILARITY", "0.4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Database.Path)
	assert.Equal(t, "mxbai-embed-large", cfg.AI.EmbeddingModel)
	assert.Equal(t, 1.5, cfg.Chunking.ShiftSigma)
	assert.Equal(t, []string{"**/drafts/**", "**/*.tmp"}, cfg.Index.Exclude)
	assert.Equal(t, 3, cfg.Search.TopK, "file value survives when env is unset")
	assert.Equal(t, float32(0.4), cfg.Search.MinSimilarity)
}

func TestLoad_IgnoresUnprefixedVariables(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("WORKERS", "99")
	t.Setenv("TOP_K", "42")
	t.Setenv("EMBEDDING_MODEL", "from-shell")
	t.Setenv("BATCH_SIZE", "7")
	t.Setenv("SHIFT_SIGMA", "9")

	cfg, err := Load("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".kbase", "db"), cfg.Database.Path)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "embeddinggemma", cfg.AI.EmbeddingModel)
	assert.Equal(t, 100, cfg.Reembed.BatchSize)
	assert.Equal(t, chunking.DefaultShiftSigma, cfg.Chunking.ShiftSigma)
}

func TestLoad_PrefixedNamesFromFieldNames(t *testing.T) {
	t.Setenv("KBASE_DB_POSTGRES_URL", "postgres://kbase@localhost/kbase")
	t.Setenv("KBASE_INDEX_WORKERS", "2")
	t.Setenv("KBASE_SEARCH_TOP_K", "9")
	t.Setenv("KBASE_CHUNKING_MAX_TOKENS_PER_CHUNK", "80")
	t.Setenv("KBASE_AI_EMBEDDING_BATCH_SIZE", "16")
	t.Setenv("KBASE_REEMBED_RETRY_DELAY", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://kbase@localhost/kbase", cfg.Database.PostgresURL)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, 9, cfg.Search.TopK)
	assert.Equal(t, 80, cfg.Chunking.MaxTokensPerChunk)
	assert.Equal(t, 16, cfg.AI.EmbeddingBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Reembed.RetryDelay)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("KBASE_SEARCH_TOP_K", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "database: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = " " }},
		{"missing embedding model", func(c *Config) { c.AI.EmbeddingModel = "" }},
		{"chunk budget", func(c *Config) { c.Chunking.MaxTokensPerChunk = 0 }},
		{"bad include pattern", func(c *Config) { c.Index.Include = []string{"docs/[*.md"} }},
		{"no include patterns", func(c *Config) { c.Index.Include = nil }},
		{"zero workers", func(c *Config) { c.Index.Workers = 0 }},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }},
		{"similarity above one", func(c *Config) { c.Search.MinSimilarity = 1.1 }},
		{"zero batch size", func(c *Config) { c.Reembed.BatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, filepath.Join(home, "kb"), expandPath("~/kb"))
	assert.Equal(t, "/abs/kb", expandPath("/abs/kb"))
	assert.Equal(t, "rel/~kb", expandPath("rel/~kb"))
}
