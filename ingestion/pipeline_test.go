package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/chunking"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/badger"
	"github.com/poiesic/kbase/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstVersion = `# Cats

Cats sleep most of the day and purr when content.

## Feeding

Cats need protein. Feed the cat twice a day.
`

const secondVersion = `# Cars

Cars need fuel and regular service.

## Engines

The car engine turns fuel into motion.
`

type fixture struct {
	stores   *storage.Stores
	embedder *mock.MockEmbedder
	pipeline *Pipeline
}

func newFixture(t *testing.T, stores *storage.Stores, opts ...Option) *fixture {
	t.Helper()
	embedder := mock.NewTopicEmbedder("cat", "car", "fuel")
	provider := mock.NewMockProviderWithServices(embedder, mock.NewWordTokenizer())

	cfg := chunking.DefaultConfig()
	cfg.MaxTokensPerChunk = 8
	cfg.MaxTokensPerSection = 40
	opts = append([]Option{WithChunkingConfig(cfg), WithPoolSize(2)}, opts...)

	pipeline, err := NewPipeline(stores, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)
	return &fixture{stores: stores, embedder: embedder, pipeline: pipeline}
}

func (f *fixture) chunkIDs(t *testing.T, fileID uuid.UUID) []uuid.UUID {
	t.Helper()
	ids, err := f.stores.Chunks.IDsByFile(context.Background(), fileID)
	require.NoError(t, err)
	return ids
}

func (f *fixture) vectorIDs(t *testing.T) map[uuid.UUID]bool {
	t.Helper()
	ctx := context.Background()
	n, err := f.stores.Vectors.Len(ctx)
	require.NoError(t, err)
	matches, err := f.stores.Vectors.Search(ctx, []float32{1, 1, 1, 1}, n+1)
	require.NoError(t, err)
	out := make(map[uuid.UUID]bool, len(matches))
	for _, m := range matches {
		out[m.ID] = true
	}
	return out
}

func TestNewPipeline_Validation(t *testing.T) {
	provider := mock.NewMockProvider()

	_, err := NewPipeline(nil, provider)
	assert.ErrorIs(t, err, storage.ErrStoresRequired)

	stores := memory.NewStores()
	stores.Vectors = nil
	_, err = NewPipeline(stores, provider)
	assert.ErrorIs(t, err, storage.ErrVectorStoreRequired)

	_, err = NewPipeline(memory.NewStores(), nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	bad := chunking.DefaultConfig()
	bad.MaxTokensPerChunk = 0
	_, err = NewPipeline(memory.NewStores(), provider, WithChunkingConfig(bad))
	assert.ErrorIs(t, err, chunking.ErrInvalidConfig)

	_, err = NewPipeline(memory.NewStores(), provider, WithEmbeddingDimension(-1))
	assert.Error(t, err)
}

func TestConsume_InputValidation(t *testing.T) {
	f := newFixture(t, memory.NewStores())
	ctx := context.Background()

	_, err := f.pipeline.Consume(ctx, nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = f.pipeline.Consume(ctx, NewBytesSource(uuid.Nil, "a.md", []byte("x")))
	assert.ErrorIs(t, err, ErrEmptyFileID)

	assert.Zero(t, f.embedder.CallCount())
}

func TestConsume_IndexesNewFile(t *testing.T) {
	for name, newStores := range map[string]func(t *testing.T) *storage.Stores{
		"memory": func(t *testing.T) *storage.Stores { return memory.NewStores() },
		"badger": func(t *testing.T) *storage.Stores {
			stores, err := badger.NewMemoryStores()
			require.NoError(t, err)
			t.Cleanup(func() { stores.Close() })
			return &stores.Stores
		},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			f := newFixture(t, newStores(t), WithClock(func() time.Time { return stamp }))
			id := uuid.New()

			changed, err := f.pipeline.Consume(ctx, NewBytesSource(id, "cats.md", []byte(firstVersion)))
			require.NoError(t, err)
			assert.True(t, changed)

			file, err := f.stores.Files.Get(ctx, id)
			require.NoError(t, err)
			want := sha256.Sum256([]byte(firstVersion))
			assert.Equal(t, want[:], file.ContentHash)
			assert.Equal(t, core.StatusIndexed, file.Status)
			assert.Equal(t, "cats.md", file.Name)
			assert.True(t, stamp.Equal(file.ProcessedAt))

			sections, err := f.stores.Sections.GetByFile(ctx, id)
			require.NoError(t, err)
			require.NotEmpty(t, sections)

			total := 0
			for i, section := range sections {
				assert.Equal(t, i, section.Index)
				chunks, err := f.stores.Chunks.GetBySection(ctx, section.ID)
				require.NoError(t, err)
				require.NotEmpty(t, chunks)
				for _, chunk := range chunks {
					assert.Equal(t, id, chunk.FileID)
					assert.Len(t, chunk.Embedding, 4)
				}
				total += len(chunks)
			}

			n, err := f.stores.Vectors.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, total, n)
			assert.Equal(t, total, f.embedder.CallCount())
		})
	}
}

func TestConsume_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	source := NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion))

	changed, err := f.pipeline.Consume(ctx, source)
	require.NoError(t, err)
	require.True(t, changed)
	calls := f.embedder.CallCount()
	ids := f.chunkIDs(t, source.FileID())

	changed, err = f.pipeline.Consume(ctx, source)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, calls, f.embedder.CallCount())
	assert.ElementsMatch(t, ids, f.chunkIDs(t, source.FileID()))
}

func TestConsume_ChangedContentReplacesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	id := uuid.New()
	other := NewBytesSource(uuid.New(), "other.md", []byte("unrelated fuel notes"))

	_, err := f.pipeline.Consume(ctx, other)
	require.NoError(t, err)
	_, err = f.pipeline.Consume(ctx, NewBytesSource(id, "doc.md", []byte(firstVersion)))
	require.NoError(t, err)
	oldIDs := f.chunkIDs(t, id)
	require.NotEmpty(t, oldIDs)

	changed, err := f.pipeline.Consume(ctx, NewBytesSource(id, "doc.md", []byte(secondVersion)))
	require.NoError(t, err)
	assert.True(t, changed)

	newIDs := f.chunkIDs(t, id)
	require.NotEmpty(t, newIDs)
	vectors := f.vectorIDs(t)

	for _, old := range oldIDs {
		assert.False(t, vectors[old], "old chunk vector %s should be removed", old)
		_, err := f.stores.Chunks.Get(ctx, old)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	for _, fresh := range newIDs {
		assert.True(t, vectors[fresh], "new chunk vector %s should be present", fresh)
	}
	for _, untouched := range f.chunkIDs(t, other.FileID()) {
		assert.True(t, vectors[untouched])
	}
	assert.Len(t, vectors, len(newIDs)+len(f.chunkIDs(t, other.FileID())))

	file, err := f.stores.Files.Get(ctx, id)
	require.NoError(t, err)
	want := sha256.Sum256([]byte(secondVersion))
	assert.Equal(t, want[:], file.ContentHash)

	sections, err := f.stores.Sections.GetByFile(ctx, id)
	require.NoError(t, err)
	for _, s := range sections {
		chunks, err := f.stores.Chunks.GetBySection(ctx, s.ID)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.NotContains(t, strings.ToLower(c.Content), "cats")
		}
	}
}

func TestConsume_ReindexAfterRowDeletionSkipsEmbedding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	source := NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion))

	_, err := f.pipeline.Consume(ctx, source)
	require.NoError(t, err)

	_, err = f.stores.Sections.DeleteByFile(ctx, source.FileID())
	require.NoError(t, err)
	_, err = f.stores.Chunks.DeleteByFile(ctx, source.FileID())
	require.NoError(t, err)

	f.embedder.Reset()
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return mock.TopicVector(text, []string{"cat", "car", "fuel"}), nil
	}

	changed, err := f.pipeline.Consume(ctx, source)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, f.embedder.CallCount())
}

func TestConsume_TransientFailureSelfHeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	source := NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion))

	boom := errors.New("embedding service unavailable")
	calls := 0
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return mock.TopicVector(text, []string{"cat", "car", "fuel"}), nil
	}

	_, err := f.pipeline.Consume(ctx, source)
	require.ErrorIs(t, err, boom)

	file, err := f.stores.Files.Get(ctx, source.FileID())
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, file.Status)
	assert.Empty(t, file.ContentHash)

	changed, err := f.pipeline.Consume(ctx, source)
	require.NoError(t, err)
	assert.True(t, changed)

	ids := f.chunkIDs(t, source.FileID())
	n, err := f.stores.Vectors.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ids), n, "partial output from the failed run is torn down")
}

// flakySections fails DeleteByFile the first time it is called.
type flakySections struct {
	storage.SectionStore
	failed bool
}

var errSectionsUnavailable = errors.New("section store unavailable")

func (s *flakySections) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	if !s.failed {
		s.failed = true
		return 0, errSectionsUnavailable
	}
	return s.SectionStore.DeleteByFile(ctx, fileID)
}

func TestConsume_FailedTeardownForcesRebuild(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	sections := &flakySections{SectionStore: stores.Sections, failed: true}
	stores.Sections = sections
	f := newFixture(t, stores)
	id := uuid.New()

	_, err := f.pipeline.Consume(ctx, NewBytesSource(id, "doc.md", []byte(firstVersion)))
	require.NoError(t, err)
	require.NotEmpty(t, f.chunkIDs(t, id))

	sections.failed = false
	_, err = f.pipeline.Consume(ctx, NewBytesSource(id, "doc.md", []byte(secondVersion)))
	require.ErrorIs(t, err, errSectionsUnavailable)

	file, err := f.stores.Files.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, file.Status)
	assert.Empty(t, file.ContentHash, "old fingerprint must not survive a failed teardown")

	changed, err := f.pipeline.Consume(ctx, NewBytesSource(id, "doc.md", []byte(firstVersion)))
	require.NoError(t, err)
	assert.True(t, changed, "original content is rebuilt rather than skipped")

	ids := f.chunkIDs(t, id)
	require.NotEmpty(t, ids)
	vectors := f.vectorIDs(t)
	assert.Len(t, vectors, len(ids))
	for _, chunkID := range ids {
		assert.True(t, vectors[chunkID])
	}

	file, err = f.stores.Files.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusIndexed, file.Status)
}

func TestConsume_MissingEmbeddingIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, nil
	}
	source := NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion))

	_, err := f.pipeline.Consume(ctx, source)
	require.ErrorIs(t, err, core.ErrMissingEmbedding)

	file, err := f.stores.Files.Get(ctx, source.FileID())
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, file.Status)
	assert.Empty(t, file.ContentHash)

	n, err := f.stores.Vectors.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsume_DimensionMismatch(t *testing.T) {
	f := newFixture(t, memory.NewStores(), WithEmbeddingDimension(768))
	_, err := f.pipeline.Consume(context.Background(), NewBytesSource(uuid.New(), "a.md", []byte("cat")))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

type forgetfulFiles struct {
	storage.FileStore
}

func (forgetfulFiles) Get(ctx context.Context, id uuid.UUID) (*core.KnowledgeFile, error) {
	return nil, storage.ErrNotFound
}

func TestConsume_FileVanished(t *testing.T) {
	stores := memory.NewStores()
	stores.Files = forgetfulFiles{FileStore: stores.Files}
	f := newFixture(t, stores)

	_, err := f.pipeline.Consume(context.Background(), NewBytesSource(uuid.New(), "a.md", []byte("cat naps")))
	assert.ErrorIs(t, err, ErrFileVanished)
}

func TestConsume_UnsupportedContentType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	id := uuid.New()

	changed, err := f.pipeline.Consume(ctx, NewBytesSource(id, "cats.md", []byte(firstVersion)))
	require.NoError(t, err)
	require.True(t, changed)
	f.embedder.Reset()

	changed, err = f.pipeline.Consume(ctx, NewBytesSource(id, "cats.png", []byte{0x89, 'P', 'N', 'G'}))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, f.embedder.CallCount())

	file, err := f.stores.Files.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnsupportedContentType, file.Status)
	assert.Empty(t, f.chunkIDs(t, id))
	n, err := f.stores.Vectors.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsume_RestrictedContentTypes(t *testing.T) {
	f := newFixture(t, memory.NewStores(), WithContentTypes("text/markdown"))
	ctx := context.Background()

	changed, err := f.pipeline.Consume(ctx, NewBytesSource(uuid.New(), "a.txt", []byte("cat")))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.pipeline.Consume(ctx, NewBytesSource(uuid.New(), "a", []byte("cat")).WithContentType("text/markdown; charset=utf-8"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestConsumeAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())

	sources := []FileSource{
		NewBytesSource(uuid.New(), "one.md", []byte(firstVersion)),
		NewBytesSource(uuid.New(), "two.md", []byte(secondVersion)),
		NewBytesSource(uuid.New(), "three.md", []byte("fuel prices")),
	}
	results, err := f.pipeline.ConsumeAll(ctx, sources)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, sources[i].FileID(), r.FileID)
		assert.NoError(t, r.Err)
		assert.True(t, r.Changed)
		assert.False(t, r.Unsupported)
	}

	results, err = f.pipeline.ConsumeAll(ctx, sources)
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.Changed)
		assert.False(t, r.Unsupported)
	}

	dup := []FileSource{sources[0], NewBytesSource(sources[0].FileID(), "copy.md", nil)}
	_, err = f.pipeline.ConsumeAll(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateSource)

	_, err = f.pipeline.ConsumeAll(ctx, []FileSource{nil})
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestConsumeAll_FlagsUnsupportedSources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())

	sources := []FileSource{
		NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion)),
		NewBytesSource(uuid.New(), "logo.png", []byte{0x89, 'P', 'N', 'G'}),
	}
	results, err := f.pipeline.ConsumeAll(ctx, sources)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Changed)
	assert.False(t, results[0].Unsupported)
	assert.False(t, results[1].Changed)
	assert.True(t, results[1].Unsupported)
	assert.NoError(t, results[1].Err)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewStores())
	source := NewBytesSource(uuid.New(), "cats.md", []byte(firstVersion))

	_, err := f.pipeline.Consume(ctx, source)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Remove(ctx, source.FileID()))

	exists, err := f.stores.Files.Exists(ctx, source.FileID())
	require.NoError(t, err)
	assert.False(t, exists)
	n, err := f.stores.Vectors.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	sections, err := f.stores.Sections.GetByFile(ctx, source.FileID())
	require.NoError(t, err)
	assert.Empty(t, sections)

	assert.ErrorIs(t, f.pipeline.Remove(ctx, source.FileID()), storage.ErrNotFound)
}
