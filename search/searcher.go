package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// Searcher answers natural-language queries over indexed chunks.
type Searcher struct {
	stores        storage.Stores
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity drops vector hits whose cosine similarity is below
// threshold. Default is -1, which keeps every hit.
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidMinSimilarity, threshold)
		}
		s.minSimilarity = threshold
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(stores *storage.Stores, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		stores:        *stores,
		embedder:      provider.Embedder(),
		minSimilarity: -1,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to k chunks most similar to query, each hydrated with
// its section and file and scored relative to the rest of the result set.
// Results are ordered by descending similarity.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, k)
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, core.ErrMissingEmbedding
	}
	monitor.AfterEmbedding(embedding)

	matches, err := s.stores.Vectors.Search(ctx, embedding, k)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	matches = s.filter(matches)
	monitor.AfterVectorSearch(matches)

	results, err := s.hydrate(ctx, matches, monitor)
	if err != nil {
		return nil, err
	}
	Score(results)

	monitor.Finish(results)
	return results, nil
}

func (s *Searcher) filter(matches []core.VectorMatch) []core.VectorMatch {
	if s.minSimilarity <= -1 {
		return matches
	}
	kept := make([]core.VectorMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= s.minSimilarity {
			kept = append(kept, m)
		}
	}
	return kept
}

// hydrate loads the chunk, section and file behind each match. A match whose
// chunk or section has disappeared is skipped; any other store error aborts.
func (s *Searcher) hydrate(ctx context.Context, matches []core.VectorMatch, monitor SearchMonitor) ([]*core.SearchResult, error) {
	sections := make(map[uuid.UUID]*core.Section)
	files := make(map[uuid.UUID]*core.KnowledgeFile)
	results := make([]*core.SearchResult, 0, len(matches))

	for _, match := range matches {
		chunk, err := s.stores.Chunks.Get(ctx, match.ID)
		if errors.Is(err, storage.ErrNotFound) {
			s.orphan(match, monitor, "chunk")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load chunk %s: %w", match.ID, err)
		}

		section, ok := sections[chunk.SectionID]
		if !ok {
			section, err = s.stores.Sections.Get(ctx, chunk.SectionID)
			if errors.Is(err, storage.ErrNotFound) {
				s.orphan(match, monitor, "section")
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load section %s: %w", chunk.SectionID, err)
			}
			sections[chunk.SectionID] = section
		}

		file, ok := files[chunk.FileID]
		if !ok {
			file, err = s.stores.Files.Get(ctx, chunk.FileID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("load file %s: %w", chunk.FileID, err)
			}
			// A missing file record leaves File nil rather than dropping the hit.
			files[chunk.FileID] = file
		}

		results = append(results, &core.SearchResult{
			Chunk:   chunk,
			Section: section,
			File:    file,
			Metrics: core.RelevanceMetrics{CosineSimilarity: match.Similarity},
		})
	}
	return results, nil
}

func (s *Searcher) orphan(match core.VectorMatch, monitor SearchMonitor, missing string) {
	s.logger.Warn("skipping orphaned vector", "id", match.ID, "missing", missing)
	monitor.OrphanedMatch(match)
}
