// Package storagetest holds conformance suites shared by every storage
// implementation. Each backend's tests call these with a constructor.
package storagetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// VectorStoreFactory returns a fresh, empty store. Cleanup is registered on t.
type VectorStoreFactory func(t *testing.T) storage.VectorStore

// RunVectorStoreTests exercises the storage.VectorStore contract.
func RunVectorStoreTests(t *testing.T, newStore VectorStoreFactory) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		store := newStore(t)
		matches, err := store.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, matches)

		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("orders by similarity", func(t *testing.T) {
		store := newStore(t)
		near, mid, far := uuid.New(), uuid.New(), uuid.New()
		require.NoError(t, store.Add(ctx, far, []float32{0, 0, 1}))
		require.NoError(t, store.Add(ctx, mid, []float32{0.7, 0.7, 0}))
		require.NoError(t, store.Add(ctx, near, []float32{1, 0.05, 0}))

		matches, err := store.Search(ctx, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, []uuid.UUID{near, mid, far}, ids(matches))
		assert.InDelta(t, 0.9988, matches[0].Similarity, 0.001)
		assert.InDelta(t, 0.0, matches[2].Similarity, 0.0001)
	})

	t.Run("limits to k", func(t *testing.T) {
		store := newStore(t)
		for range 6 {
			require.NoError(t, store.Add(ctx, uuid.New(), []float32{1, 1}))
		}
		matches, err := store.Search(ctx, []float32{1, 1}, 4)
		require.NoError(t, err)
		assert.Len(t, matches, 4)

		matches, err = store.Search(ctx, []float32{1, 1}, 0)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		store := newStore(t)
		var inserted []uuid.UUID
		for range 5 {
			id := uuid.New()
			inserted = append(inserted, id)
			require.NoError(t, store.Add(ctx, id, []float32{0.5, 0.5}))
		}
		matches, err := store.Search(ctx, []float32{2, 2}, 5)
		require.NoError(t, err)
		assert.Equal(t, inserted, ids(matches))
	})

	t.Run("replace keeps position", func(t *testing.T) {
		store := newStore(t)
		first, second := uuid.New(), uuid.New()
		require.NoError(t, store.Add(ctx, first, []float32{0, 1}))
		require.NoError(t, store.Add(ctx, second, []float32{1, 0}))
		require.NoError(t, store.Add(ctx, first, []float32{1, 0}))

		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		matches, err := store.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first, second}, ids(matches))
		assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
	})

	t.Run("remove", func(t *testing.T) {
		store := newStore(t)
		keep, drop := uuid.New(), uuid.New()
		require.NoError(t, store.Add(ctx, keep, []float32{1, 0}))
		require.NoError(t, store.Add(ctx, drop, []float32{1, 0}))
		require.NoError(t, store.Remove(ctx, drop))
		require.NoError(t, store.Remove(ctx, uuid.New()), "removing an absent id is a no-op")

		matches, err := store.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{keep}, ids(matches))
	})

	t.Run("zero norm scores zero", func(t *testing.T) {
		store := newStore(t)
		zero, unit := uuid.New(), uuid.New()
		require.NoError(t, store.Add(ctx, zero, []float32{0, 0, 0}))
		require.NoError(t, store.Add(ctx, unit, []float32{0, 0, 1}))

		matches, err := store.Search(ctx, []float32{0, 0, 1}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, unit, matches[0].ID)
		assert.Equal(t, zero, matches[1].ID)
		assert.Zero(t, matches[1].Similarity)

		matches, err = store.Search(ctx, []float32{0, 0, 0}, 2)
		require.NoError(t, err)
		for _, m := range matches {
			assert.Zero(t, m.Similarity)
		}
	})

	t.Run("negated vector", func(t *testing.T) {
		store := newStore(t)
		id := uuid.New()
		require.NoError(t, store.Add(ctx, id, []float32{0.3, -0.4, 0.5}))

		matches, err := store.Search(ctx, []float32{-0.3, 0.4, -0.5}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.InDelta(t, -1.0, matches[0].Similarity, 0.0001)
	})
}

func ids(matches []core.VectorMatch) []uuid.UUID {
	out := make([]uuid.UUID, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}
