package badger

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB.
//
// Each vector is stored with a sequence number drawn from a badger sequence
// on first insert. Search breaks similarity ties by that number, so results
// follow insertion order even though keys iterate in ID order.
type VectorStore struct {
	backend *Backend
	seq     *badger.Sequence
	mu      sync.Mutex
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore. Close releases its sequence.
func NewVectorStore(backend *Backend) (*VectorStore, error) {
	seq, err := backend.GetSequence(vectorSeq)
	if err != nil {
		return nil, err
	}
	return &VectorStore{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the insertion-order sequence.
func (s *VectorStore) Close() error {
	return s.seq.Release()
}

// Add inserts or replaces the vector for id.
func (s *VectorStore) Add(ctx context.Context, id uuid.UUID, vector []float32) error {
	if id == uuid.Nil {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeVectorKey(id)
		existing, found, err := readRecord(tx, key, storage.UnmarshalVectorEntry)
		if err != nil {
			return err
		}
		entry := &storage.VectorEntry{Vector: vector}
		if found {
			entry.Seq = existing.Seq
		} else {
			next, err := s.seq.Next()
			if err != nil {
				return err
			}
			entry.Seq = int64(next)
		}
		if err := tx.Set(key, storage.MarshalVectorEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Remove deletes the vector for id. Removing an absent id is a no-op.
func (s *VectorStore) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeVectorKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

type scoredEntry struct {
	match core.VectorMatch
	seq   int64
}

// Search scans every stored vector and returns the k most similar to query.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]core.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	var scored []scoredEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(vectorPrefix)
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := item.Key()
			if !hasPrefix(key, prefix) {
				break
			}
			id, err := storage.UnmarshalID(key[len(prefix):])
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalVectorEntry(val)
				if err != nil {
					return err
				}
				scored = append(scored, scoredEntry{
					match: core.VectorMatch{ID: id, Similarity: core.CosineSimilarity(query, entry.Vector)},
					seq:   entry.Seq,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(scored, func(a, b scoredEntry) int {
		if c := cmp.Compare(b.match.Similarity, a.match.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	matches := make([]core.VectorMatch, len(scored))
	for i, entry := range scored {
		matches[i] = entry.match
	}
	return matches, nil
}

// Len returns the number of stored vectors.
func (s *VectorStore) Len(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(vectorPrefix)
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if !hasPrefix(iter.Item().Key(), prefix) {
				break
			}
			count++
		}
		return nil
	}, false)
	return count, err
}
