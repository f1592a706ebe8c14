package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// ChunkStore implements storage.ChunkStore for BadgerDB.
//
// Each chunk has a primary record plus two index entries: one ordered by
// (section, index) and one keyed by (file, chunk) for bulk teardown.
type ChunkStore struct {
	backend *Backend
}

var _ storage.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates a new ChunkStore.
func NewChunkStore(backend *Backend) *ChunkStore {
	return &ChunkStore{backend: backend}
}

// Add stores a chunk and its index entries.
func (s *ChunkStore) Add(ctx context.Context, chunk *core.Chunk) error {
	if chunk == nil || chunk.ID == uuid.Nil {
		return core.ErrInvalidChunk
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkKey(chunk.ID)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrDuplicateKey
		}
		if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		if err := setChunkIndexes(tx, chunk); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a chunk by ID.
func (s *ChunkStore) Get(ctx context.Context, id uuid.UUID) (*core.Chunk, error) {
	var result *core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		chunk, found, err := readRecord(tx, makeChunkKey(id), storage.UnmarshalChunk)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = chunk
		return nil
	}, false)
	return result, err
}

// Update replaces an existing chunk, moving its index entries if the
// chunk changed owner or position.
func (s *ChunkStore) Update(ctx context.Context, chunk *core.Chunk) error {
	if chunk == nil || chunk.ID == uuid.Nil {
		return core.ErrInvalidChunk
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkKey(chunk.ID)
		old, found, err := readRecord(tx, key, storage.UnmarshalChunk)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		if old.SectionID != chunk.SectionID || old.Index != chunk.Index || old.FileID != chunk.FileID {
			for _, stale := range chunkIndexKeys(old) {
				if err := tx.Delete(stale); err != nil {
					return err
				}
			}
			if err := setChunkIndexes(tx, chunk); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetBySection returns the chunks of a section ordered by Index.
func (s *ChunkStore) GetBySection(ctx context.Context, sectionID uuid.UUID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := readIndexedIDs(tx, makeOwnerPrefix(chunkSectionPrefix, sectionID))
		if err != nil {
			return err
		}
		for _, id := range ids {
			chunk, found, err := readRecord(tx, makeChunkKey(id), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if found {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// IDsByFile returns the IDs of every chunk that belongs to a file.
func (s *ChunkStore) IDsByFile(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, err = chunkIDsByFile(tx, fileID)
		return err
	}, false)
	return ids, err
}

// DeleteByFile removes every chunk of a file along with its index entries.
func (s *ChunkStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	var keys [][]byte
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := chunkIDsByFile(tx, fileID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			keys = append(keys, makeChunkKey(id), makeChunkFileKey(fileID, id))
			chunk, found, err := readRecord(tx, makeChunkKey(id), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if found {
				keys = append(keys, makeChunkSectionKey(chunk.SectionID, chunk.Index))
				count++
			}
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if err := s.backend.DeleteKeys(keys); err != nil {
		return 0, err
	}
	return count, nil
}

func chunkIDsByFile(tx *badger.Txn, fileID uuid.UUID) ([]uuid.UUID, error) {
	prefix := makeOwnerPrefix(chunkFilePrefix, fileID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []uuid.UUID
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if !hasPrefix(key, prefix) {
			break
		}
		id, err := storage.UnmarshalID(key[len(prefix):])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func chunkIndexKeys(chunk *core.Chunk) [][]byte {
	return [][]byte{
		makeChunkSectionKey(chunk.SectionID, chunk.Index),
		makeChunkFileKey(chunk.FileID, chunk.ID),
	}
}

func setChunkIndexes(tx *badger.Txn, chunk *core.Chunk) error {
	if err := tx.Set(makeChunkSectionKey(chunk.SectionID, chunk.Index), storage.MarshalID(chunk.ID)); err != nil {
		return err
	}
	return tx.Set(makeChunkFileKey(chunk.FileID, chunk.ID), nil)
}
