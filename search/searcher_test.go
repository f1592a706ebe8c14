package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/chunking"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handbook = `## Cats

Cats nap daily. The cat purrs. A cat grooms. My cat eats. That cat naps. One cat hides.

## Cars

Cars need fuel. The car burns fuel. A car engine runs. Fuel costs money. The car stops.
`

var topics = []string{"cat", "car", "fuel"}

// recordingMonitor captures every callback for assertions.
type recordingMonitor struct {
	query    string
	vector   []float32
	matches  []core.VectorMatch
	orphans  []core.VectorMatch
	results  []*core.SearchResult
	finished bool
}

func (m *recordingMonitor) Start(query string)                           { m.query = query }
func (m *recordingMonitor) AfterEmbedding(vector []float32)              { m.vector = vector }
func (m *recordingMonitor) AfterVectorSearch(matches []core.VectorMatch) { m.matches = matches }
func (m *recordingMonitor) OrphanedMatch(match core.VectorMatch)         { m.orphans = append(m.orphans, match) }
func (m *recordingMonitor) Finish(results []*core.SearchResult) {
	m.results = results
	m.finished = true
}

func newTopicEmbedder() *mock.MockEmbedder {
	return mock.NewTopicEmbedder(topics...)
}

// addChunk stores a file, one section and one chunk, and indexes its vector.
func addChunk(t *testing.T, stores *storage.Stores, content string) *core.Chunk {
	t.Helper()
	ctx := context.Background()

	file := &core.KnowledgeFile{ID: uuid.New(), Name: "notes.md", Status: core.StatusIndexed}
	require.NoError(t, stores.Files.Add(ctx, file))

	chunk := &core.Chunk{
		ID:        uuid.New(),
		SectionID: uuid.New(),
		FileID:    file.ID,
		Content:   content,
		Tokens:    len(strings.Fields(content)),
		Embedding: mock.TopicVector(content, topics),
	}
	section := &core.Section{ID: chunk.SectionID, FileID: file.ID, Chunks: []*core.Chunk{chunk}}
	require.NoError(t, stores.Sections.Add(ctx, section))
	require.NoError(t, stores.Chunks.Add(ctx, chunk))
	require.NoError(t, stores.Vectors.Add(ctx, chunk.ID, chunk.Embedding))
	return chunk
}

func newSearcher(t *testing.T, stores *storage.Stores, opts ...Option) *Searcher {
	t.Helper()
	provider := mock.NewMockProviderWithServices(newTopicEmbedder(), mock.NewWordTokenizer())
	s, err := NewSearcher(stores, provider, opts...)
	require.NoError(t, err)
	return s
}

func TestNewSearcher(t *testing.T) {
	provider := mock.NewMockProvider()

	t.Run("nil stores", func(t *testing.T) {
		_, err := NewSearcher(nil, provider)
		assert.ErrorIs(t, err, storage.ErrStoresRequired)
	})

	t.Run("missing chunk store", func(t *testing.T) {
		stores := memory.NewStores()
		stores.Chunks = nil
		_, err := NewSearcher(stores, provider)
		assert.ErrorIs(t, err, storage.ErrChunkStoreRequired)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(memory.NewStores(), nil)
		assert.ErrorIs(t, err, ErrAIProviderRequired)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := NewSearcher(memory.NewStores(), provider, WithMinSimilarity(1.5))
		assert.ErrorIs(t, err, ErrInvalidMinSimilarity)
	})

	t.Run("with options", func(t *testing.T) {
		s, err := NewSearcher(memory.NewStores(), provider, WithLogger(nil), WithMinSimilarity(0.25))
		require.NoError(t, err)
		assert.NotNil(t, s.logger)
		assert.Equal(t, float32(0.25), s.minSimilarity)
	})
}

func TestSearch_Validation(t *testing.T) {
	s := newSearcher(t, memory.NewStores())
	ctx := context.Background()

	_, err := s.Search(ctx, "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(ctx, "cat", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSearch_EmptyIndex(t *testing.T) {
	s := newSearcher(t, memory.NewStores())

	results, err := s.Search(context.Background(), "cat", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	boom := errors.New("model offline")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}
	s, err := NewSearcher(memory.NewStores(), mock.NewMockProviderWithServices(embedder, mock.NewWordTokenizer()))
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "cat", 3)
	assert.ErrorIs(t, err, boom)
}

func TestSearch_HydratesAndScores(t *testing.T) {
	stores := memory.NewStores()
	cats := addChunk(t, stores, "cat cat naps")
	cars := addChunk(t, stores, "car fuel stop")
	mixed := addChunk(t, stores, "cat car fuel")

	s := newSearcher(t, stores)
	monitor := &recordingMonitor{}
	results, err := s.SearchWithMonitor(context.Background(), "car fuel", 3, monitor)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, cars.ID, results[0].Chunk.ID)
	assert.Equal(t, mixed.ID, results[1].Chunk.ID)
	assert.Equal(t, cats.ID, results[2].Chunk.ID)

	for _, r := range results {
		require.NotNil(t, r.Section)
		require.NotNil(t, r.File)
		assert.Equal(t, r.Chunk.SectionID, r.Section.ID)
		assert.Equal(t, r.Chunk.FileID, r.File.ID)
	}
	assert.GreaterOrEqual(t, results[0].Metrics.CosineSimilarity, results[1].Metrics.CosineSimilarity)
	assert.Equal(t, 100.0, results[0].Metrics.NormalizedScore)
	assert.Equal(t, 0.0, results[2].Metrics.NormalizedScore)
	assert.Equal(t, results[0].Metrics.StandardDeviation, results[2].Metrics.StandardDeviation)

	assert.Equal(t, "car fuel", monitor.query)
	assert.Len(t, monitor.vector, len(topics)+1)
	assert.Len(t, monitor.matches, 3)
	assert.Empty(t, monitor.orphans)
	assert.True(t, monitor.finished)
	assert.Equal(t, results, monitor.results)
}

func TestSearch_RespectsLimit(t *testing.T) {
	stores := memory.NewStores()
	for range 5 {
		addChunk(t, stores, "car fuel")
	}
	s := newSearcher(t, stores)

	results, err := s.Search(context.Background(), "car", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_SkipsOrphanedVectors(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()
	kept := addChunk(t, stores, "car fuel")

	orphan := uuid.New()
	require.NoError(t, stores.Vectors.Add(ctx, orphan, mock.TopicVector("car car fuel", topics)))

	s := newSearcher(t, stores)
	monitor := &recordingMonitor{}
	results, err := s.SearchWithMonitor(ctx, "car fuel", 5, monitor)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, kept.ID, results[0].Chunk.ID)
	require.Len(t, monitor.orphans, 1)
	assert.Equal(t, orphan, monitor.orphans[0].ID)
	assert.Len(t, monitor.matches, 2)

	// The surviving hit is scored alone.
	assert.Equal(t, 100.0, results[0].Metrics.NormalizedScore)
	assert.Equal(t, 0.0, results[0].Metrics.StandardDeviation)
}

func TestSearch_MissingFileKeepsHit(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()
	chunk := addChunk(t, stores, "cat naps")
	require.NoError(t, stores.Files.Delete(ctx, chunk.FileID))

	results, err := newSearcher(t, stores).Search(ctx, "cat", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].File)
	assert.NotNil(t, results[0].Section)
}

func TestSearch_MinSimilarity(t *testing.T) {
	stores := memory.NewStores()
	cars := addChunk(t, stores, "car fuel")
	addChunk(t, stores, "cat cat cat")

	s := newSearcher(t, stores, WithMinSimilarity(0.5))
	results, err := s.Search(context.Background(), "car fuel", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, cars.ID, results[0].Chunk.ID)
}

func TestSearch_RanksMatchingHeadingFirst(t *testing.T) {
	stores := memory.NewStores()
	embedder := newTopicEmbedder()
	provider := mock.NewMockProviderWithServices(embedder, mock.NewWordTokenizer())
	ctx := context.Background()

	cfg := chunking.DefaultConfig()
	cfg.MaxTokensPerChunk = 6
	cfg.MaxTokensPerSection = 200
	pipeline, err := ingestion.NewPipeline(stores, provider, ingestion.WithChunkingConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	fileID := uuid.New()
	changed, err := pipeline.Consume(ctx, ingestion.NewBytesSource(fileID, "handbook.md", []byte(handbook)))
	require.NoError(t, err)
	require.True(t, changed)

	sections, err := stores.Sections.GetByFile(ctx, fileID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(sections), 2)
	first, err := stores.Chunks.GetBySection(ctx, sections[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.Contains(t, first[0].Content, "## Cats")

	s, err := NewSearcher(stores, provider)
	require.NoError(t, err)
	total, err := stores.Vectors.Len(ctx)
	require.NoError(t, err)

	results, err := s.Search(ctx, "car fuel", total)
	require.NoError(t, err)
	require.Len(t, results, total)

	isCars := func(r *core.SearchResult) bool {
		lower := strings.ToLower(r.Chunk.Content)
		return strings.Contains(lower, "car") || strings.Contains(lower, "fuel")
	}
	require.True(t, isCars(results[0]))
	assert.NotEqual(t, sections[0].ID, results[0].Section.ID)

	seenOther := false
	for _, r := range results {
		if !isCars(r) {
			seenOther = true
			continue
		}
		assert.False(t, seenOther, "chunk %q ranked below an unrelated chunk", r.Chunk.Content)
	}
	assert.True(t, seenOther)
	for _, r := range results {
		assert.Equal(t, fileID, r.File.ID)
		assert.Equal(t, "handbook.md", r.File.Name)
	}
}
