package badger

import (
	"errors"

	"github.com/poiesic/kbase/storage"
)

// Stores bundles the BadgerDB implementations of every storage interface
// over one shared Backend.
type Stores struct {
	storage.Stores

	backend *Backend
	vectors *VectorStore
}

// OpenStores opens (or creates) a database directory and returns all stores.
// Caller must Close the result when done.
func OpenStores(path string) (*Stores, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStores(backend)
}

func newStores(backend *Backend) (*Stores, error) {
	vectors, err := NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &Stores{
		Stores: storage.Stores{
			Files:    NewFileStore(backend),
			Sections: NewSectionStore(backend),
			Chunks:   NewChunkStore(backend),
			Vectors:  vectors,
		},
		backend: backend,
		vectors: vectors,
	}, nil
}

// Backend exposes the shared BadgerDB backend.
func (s *Stores) Backend() *Backend {
	return s.backend
}

// Close releases the vector sequence and closes the database.
func (s *Stores) Close() error {
	return errors.Join(s.vectors.Close(), s.backend.Close())
}
