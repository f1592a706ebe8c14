package storagetest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoresFactory returns fresh, empty stores. Cleanup is registered on t.
type StoresFactory func(t *testing.T) *storage.Stores

// RunRecordStoreTests exercises the file, section and chunk store contracts.
func RunRecordStoreTests(t *testing.T, newStores StoresFactory) {
	ctx := context.Background()

	t.Run("file lifecycle", func(t *testing.T) {
		files := newStores(t).Files
		file := &core.KnowledgeFile{ID: uuid.New(), Name: "notes.md", Status: core.StatusPending}

		exists, err := files.Exists(ctx, file.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = files.Get(ctx, file.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, files.Update(ctx, file), storage.ErrNotFound)

		require.NoError(t, files.Add(ctx, file))
		assert.ErrorIs(t, files.Add(ctx, file), storage.ErrDuplicateKey)

		hash := sha256.Sum256([]byte("hello"))
		file.ContentHash = hash[:]
		file.Status = core.StatusIndexed
		file.ProcessedAt = time.Now().UTC()
		require.NoError(t, files.Update(ctx, file))

		got, err := files.Get(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.ContentHash, got.ContentHash)
		assert.Equal(t, core.StatusIndexed, got.Status)
		assert.True(t, file.ProcessedAt.Equal(got.ProcessedAt))

		require.NoError(t, files.Delete(ctx, file.ID))
		assert.ErrorIs(t, files.Delete(ctx, file.ID), storage.ErrNotFound)
	})

	t.Run("file get all ordered by id", func(t *testing.T) {
		files := newStores(t).Files
		var want []uuid.UUID
		for range 4 {
			id := uuid.New()
			want = append(want, id)
			require.NoError(t, files.Add(ctx, &core.KnowledgeFile{ID: id}))
		}
		sortIDs(want)

		all, err := files.GetAll(ctx)
		require.NoError(t, err)
		got := make([]uuid.UUID, len(all))
		for i, f := range all {
			got[i] = f.ID
		}
		assert.Equal(t, want, got)
	})

	t.Run("file rejects nil id", func(t *testing.T) {
		files := newStores(t).Files
		assert.ErrorIs(t, files.Add(ctx, &core.KnowledgeFile{}), core.ErrInvalidFile)
	})

	t.Run("sections by file and index", func(t *testing.T) {
		stores := newStores(t)
		fileID, otherID := uuid.New(), uuid.New()
		// Insert out of order to show GetByFile sorts by Index.
		for _, idx := range []int{2, 0, 1} {
			require.NoError(t, stores.Sections.Add(ctx, &core.Section{ID: uuid.New(), FileID: fileID, Index: idx}))
		}
		require.NoError(t, stores.Sections.Add(ctx, &core.Section{ID: uuid.New(), FileID: otherID, Index: 0}))

		sections, err := stores.Sections.GetByFile(ctx, fileID)
		require.NoError(t, err)
		require.Len(t, sections, 3)
		for i, s := range sections {
			assert.Equal(t, i, s.Index)
		}

		byIndex, err := stores.Sections.GetByIndex(ctx, fileID, 1)
		require.NoError(t, err)
		assert.Equal(t, sections[1].ID, byIndex.ID)

		byID, err := stores.Sections.Get(ctx, sections[2].ID)
		require.NoError(t, err)
		assert.Equal(t, 2, byID.Index)

		_, err = stores.Sections.GetByIndex(ctx, fileID, 7)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		n, err := stores.Sections.DeleteByFile(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		sections, err = stores.Sections.GetByFile(ctx, fileID)
		require.NoError(t, err)
		assert.Empty(t, sections)
		_, err = stores.Sections.Get(ctx, byID.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		others, err := stores.Sections.GetByFile(ctx, otherID)
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})

	t.Run("chunks by section and file", func(t *testing.T) {
		stores := newStores(t)
		fileID, otherFile := uuid.New(), uuid.New()
		sectionA, sectionB := uuid.New(), uuid.New()

		var all []uuid.UUID
		for i, sec := range []uuid.UUID{sectionA, sectionA, sectionB} {
			chunk := &core.Chunk{
				ID:        uuid.New(),
				SectionID: sec,
				FileID:    fileID,
				Index:     i,
				Content:   "chunk",
				Tokens:    1,
				Embedding: []float32{float32(i), 1},
			}
			all = append(all, chunk.ID)
			require.NoError(t, stores.Chunks.Add(ctx, chunk))
		}
		require.NoError(t, stores.Chunks.Add(ctx, &core.Chunk{ID: uuid.New(), SectionID: uuid.New(), FileID: otherFile, Content: "x"}))

		bySection, err := stores.Chunks.GetBySection(ctx, sectionA)
		require.NoError(t, err)
		require.Len(t, bySection, 2)
		assert.Equal(t, all[0], bySection[0].ID)
		assert.Equal(t, all[1], bySection[1].ID)
		assert.Equal(t, []float32{1, 1}, bySection[1].Embedding)

		ids, err := stores.Chunks.IDsByFile(ctx, fileID)
		require.NoError(t, err)
		assert.ElementsMatch(t, all, ids)

		chunk, err := stores.Chunks.Get(ctx, all[2])
		require.NoError(t, err)
		chunk.Embedding = []float32{9, 9}
		require.NoError(t, stores.Chunks.Update(ctx, chunk))
		chunk, err = stores.Chunks.Get(ctx, all[2])
		require.NoError(t, err)
		assert.Equal(t, []float32{9, 9}, chunk.Embedding)

		assert.ErrorIs(t, stores.Chunks.Update(ctx, &core.Chunk{ID: uuid.New()}), storage.ErrNotFound)

		n, err := stores.Chunks.DeleteByFile(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		ids, err = stores.Chunks.IDsByFile(ctx, fileID)
		require.NoError(t, err)
		assert.Empty(t, ids)
		bySection, err = stores.Chunks.GetBySection(ctx, sectionA)
		require.NoError(t, err)
		assert.Empty(t, bySection)

		ids, err = stores.Chunks.IDsByFile(ctx, otherFile)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})

	t.Run("chunk without embedding survives storage", func(t *testing.T) {
		stores := newStores(t)
		chunk := &core.Chunk{ID: uuid.New(), SectionID: uuid.New(), FileID: uuid.New(), Content: "pending"}
		require.NoError(t, stores.Chunks.Add(ctx, chunk))

		got, err := stores.Chunks.Get(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Embedding)
	})
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
}
