package badger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *Stores {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestRecordStores(t *testing.T) {
	storagetest.RunRecordStoreTests(t, func(t *testing.T) *storage.Stores {
		return &newTestStores(t).Stores
	})
}

func TestVectorStore(t *testing.T) {
	storagetest.RunVectorStoreTests(t, func(t *testing.T) storage.VectorStore {
		return newTestStores(t).Vectors
	})
}

func TestStoresPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stores, err := OpenStores(dir)
	require.NoError(t, err)

	file := &core.KnowledgeFile{ID: uuid.New(), Name: "a.md"}
	first, second := uuid.New(), uuid.New()
	require.NoError(t, stores.Files.Add(ctx, file))
	require.NoError(t, stores.Vectors.Add(ctx, first, []float32{1, 0}))
	require.NoError(t, stores.Vectors.Add(ctx, second, []float32{1, 0}))
	require.NoError(t, stores.Close())

	stores, err = OpenStores(dir)
	require.NoError(t, err)
	defer stores.Close()

	got, err := stores.Files.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.md", got.Name)

	// A vector added after reopening still sorts after the earlier ones.
	third := uuid.New()
	require.NoError(t, stores.Vectors.Add(ctx, third, []float32{1, 0}))
	matches, err := stores.Vectors.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, first, matches[0].ID)
	assert.Equal(t, second, matches[1].ID)
	assert.Equal(t, third, matches[2].ID)
}
