package kbase

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/chunking"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notes = `# Garage

## Cars

The car needs fuel. Fuel the car weekly.

## Cats

The cat sleeps on the car seat.
`

func newTestProvider() ai.AIProvider {
	return mock.NewMockProviderWithServices(mock.NewTopicEmbedder("cat", "car", "fuel"), mock.NewWordTokenizer())
}

func TestNewDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("create new database", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(ctx, dir, WithProvider(newTestProvider()))
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, db.Stores().Validate())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("test"), 0o644))

		db, err := NewDatabase(ctx, file, WithProvider(newTestProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	id := uuid.New()

	db, err := NewDatabase(ctx, dir, WithProvider(newTestProvider()))
	require.NoError(t, err)
	pipeline, err := db.NewPipeline()
	require.NoError(t, err)
	_, err = pipeline.Consume(ctx, ingestion.NewBytesSource(id, "notes.md", []byte(notes)))
	require.NoError(t, err)
	pipeline.Release()
	require.NoError(t, db.Close())

	db, err = NewDatabase(ctx, dir, WithProvider(newTestProvider()))
	require.NoError(t, err)
	defer db.Close()

	pipeline, err = db.NewPipeline()
	require.NoError(t, err)
	defer pipeline.Release()
	changed, err := pipeline.Consume(ctx, ingestion.NewBytesSource(id, "notes.md", []byte(notes)))
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content is skipped after reopen")
}

func TestDatabase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := NewMemoryDatabase(ctx, WithProvider(newTestProvider()))
	require.NoError(t, err)
	defer db.Close()

	cfg := chunking.DefaultConfig()
	cfg.MaxTokensPerChunk = 8
	pipeline, err := db.NewPipeline(ingestion.WithChunkingConfig(cfg), ingestion.WithEmbeddingDimension(4))
	require.NoError(t, err)
	defer pipeline.Release()

	id := uuid.New()
	changed, err := pipeline.Consume(ctx, ingestion.NewBytesSource(id, "notes.md", []byte(notes)))
	require.NoError(t, err)
	require.True(t, changed)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.Search(ctx, "fuel", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, strings.ToLower(results[0].Chunk.Content), "fuel")
	assert.Equal(t, "notes.md", results[0].File.Name)

	var progress bytes.Buffer
	reembedder, err := db.NewReembedder(&reembed.Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 1}, &progress)
	require.NoError(t, err)
	processed, err := reembedder.Run(ctx)
	require.NoError(t, err)
	ids, err := db.Stores().Chunks.IDsByFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, len(ids), processed)

	require.NoError(t, db.RemoveFile(ctx, id))
	n, err := db.Stores().Vectors.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = db.Stores().Files.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, db.RemoveFile(ctx, id), storage.ErrNotFound)
}
