package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// SectionStore implements storage.SectionStore for BadgerDB.
// Sections are stored without their chunks.
type SectionStore struct {
	backend *Backend
}

var _ storage.SectionStore = (*SectionStore)(nil)

// NewSectionStore creates a new SectionStore.
func NewSectionStore(backend *Backend) *SectionStore {
	return &SectionStore{backend: backend}
}

// Add stores a section and its (file, index) lookup entry.
func (s *SectionStore) Add(ctx context.Context, section *core.Section) error {
	if section == nil || section.ID == uuid.Nil {
		return core.ErrInvalidSection
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSectionKey(section.ID)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrDuplicateKey
		}
		if err := tx.Set(key, storage.MarshalSection(section)); err != nil {
			return err
		}
		indexKey := makeSectionIndexKey(section.FileID, section.Index)
		if err := tx.Set(indexKey, storage.MarshalID(section.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a section by ID.
func (s *SectionStore) Get(ctx context.Context, id uuid.UUID) (*core.Section, error) {
	var result *core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		section, found, err := readRecord(tx, makeSectionKey(id), storage.UnmarshalSection)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = section
		return nil
	}, false)
	return result, err
}

// GetByIndex retrieves the section at position index within a file.
func (s *SectionStore) GetByIndex(ctx context.Context, fileID uuid.UUID, index int) (*core.Section, error) {
	var result *core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		id, found, err := readRecord(tx, makeSectionIndexKey(fileID, index), storage.UnmarshalID)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		section, found, err := readRecord(tx, makeSectionKey(id), storage.UnmarshalSection)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = section
		return nil
	}, false)
	return result, err
}

// GetByFile returns all sections of a file ordered by Index.
func (s *SectionStore) GetByFile(ctx context.Context, fileID uuid.UUID) ([]*core.Section, error) {
	var results []*core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := readIndexedIDs(tx, makeOwnerPrefix(sectionIndexPrefix, fileID))
		if err != nil {
			return err
		}
		for _, id := range ids {
			section, found, err := readRecord(tx, makeSectionKey(id), storage.UnmarshalSection)
			if err != nil {
				return err
			}
			if found {
				results = append(results, section)
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteByFile removes every section of a file.
func (s *SectionStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	prefix := makeOwnerPrefix(sectionIndexPrefix, fileID)
	var keys [][]byte
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}
			err := item.Value(func(val []byte) error {
				id, err := storage.UnmarshalID(val)
				if err != nil {
					return err
				}
				keys = append(keys, item.KeyCopy(nil), makeSectionKey(id))
				count++
				return nil
			})
			if err != nil {
				return err
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
