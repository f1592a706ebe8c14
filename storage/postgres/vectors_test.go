package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorStore_Options(t *testing.T) {
	_, err := NewVectorStore(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
}

func TestWithTable(t *testing.T) {
	s := &VectorStore{}
	require.NoError(t, WithTable("vectors_v2")(s))
	assert.Equal(t, "vectors_v2", s.table)

	assert.ErrorIs(t, WithTable("x; DROP TABLE y")(s), ErrInvalidTable)
	assert.ErrorIs(t, WithTable("")(s), ErrInvalidTable)
}

func TestVectorStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	pool := startPostgres(ctx, t)

	store, err := NewVectorStore(pool)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")

	storagetest.RunVectorStoreTests(t, func(t *testing.T) storage.VectorStore {
		require.NoError(t, store.Truncate(ctx))
		return store
	})

	t.Run("rejects empty vector", func(t *testing.T) {
		assert.ErrorIs(t, store.Add(ctx, uuid.New(), nil), ErrEmptyVector)
	})
}
