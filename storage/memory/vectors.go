package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

type vectorEntry struct {
	seq    uint64
	vector []float32
}

// VectorStore implements storage.VectorStore with a linear scan over a map
// guarded by an RWMutex. Search holds only the read lock.
type VectorStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]vectorEntry
	nextSeq uint64
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates an empty VectorStore.
func NewVectorStore() *VectorStore {
	return &VectorStore{entries: make(map[uuid.UUID]vectorEntry)}
}

// Add inserts or replaces the vector for id.
func (s *VectorStore) Add(ctx context.Context, id uuid.UUID, vector []float32) error {
	if id == uuid.Nil {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		entry.seq = s.nextSeq
		s.nextSeq++
	}
	entry.vector = slices.Clone(vector)
	s.entries[id] = entry
	return nil
}

// Remove deletes the vector for id.
func (s *VectorStore) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Search returns the k stored vectors most similar to query.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]core.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		match core.VectorMatch
		seq   uint64
	}

	s.mu.RLock()
	results := make([]scored, 0, len(s.entries))
	for id, entry := range s.entries {
		results = append(results, scored{
			match: core.VectorMatch{ID: id, Similarity: core.CosineSimilarity(query, entry.vector)},
			seq:   entry.seq,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(results, func(a, b scored) int {
		if c := cmp.Compare(b.match.Similarity, a.match.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if len(results) > k {
		results = results[:k]
	}

	matches := make([]core.VectorMatch, len(results))
	for i, r := range results {
		matches[i] = r.match
	}
	return matches, nil
}

// Len returns the number of stored vectors.
func (s *VectorStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
