package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// FileStore implements storage.FileStore for BadgerDB.
type FileStore struct {
	backend *Backend
}

var _ storage.FileStore = (*FileStore)(nil)

// NewFileStore creates a new FileStore.
func NewFileStore(backend *Backend) *FileStore {
	return &FileStore{backend: backend}
}

// Add stores a new file record.
func (s *FileStore) Add(ctx context.Context, file *core.KnowledgeFile) error {
	if err := core.ValidateFile(file); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFileKey(file.ID)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrDuplicateKey
		}
		if err := tx.Set(key, storage.MarshalFile(file)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a file record by ID.
func (s *FileStore) Get(ctx context.Context, id uuid.UUID) (*core.KnowledgeFile, error) {
	var result *core.KnowledgeFile
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		file, found, err := readRecord(tx, makeFileKey(id), storage.UnmarshalFile)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = file
		return nil
	}, false)
	return result, err
}

// Update replaces an existing file record.
func (s *FileStore) Update(ctx context.Context, file *core.KnowledgeFile) error {
	if err := core.ValidateFile(file); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFileKey(file.ID)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
		if err := tx.Set(key, storage.MarshalFile(file)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Exists reports whether a file record is stored.
func (s *FileStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		exists, err = keyExists(tx, makeFileKey(id))
		return err
	}, false)
	return exists, err
}

// GetAll retrieves every file record ordered by ID.
func (s *FileStore) GetAll(ctx context.Context) ([]*core.KnowledgeFile, error) {
	var results []*core.KnowledgeFile
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(filePrefix)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var file *core.KnowledgeFile
			err := item.Value(func(val []byte) error {
				var err error
				file, err = storage.UnmarshalFile(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, file)
		}
		return nil
	}, false)
	return results, err
}

// Delete removes a file record.
func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFileKey(id)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
