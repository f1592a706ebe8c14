package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
)

// FileStore provides durable CRUD for knowledge file records.
// Implementations must be thread-safe and support concurrent access.
type FileStore interface {
	// Add stores a new file record.
	// Returns ErrDuplicateKey if a record with the same ID exists.
	Add(ctx context.Context, file *core.KnowledgeFile) error

	// Get retrieves a file record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*core.KnowledgeFile, error)

	// Update replaces an existing file record.
	// Returns ErrNotFound if the record doesn't exist.
	Update(ctx context.Context, file *core.KnowledgeFile) error

	// Exists reports whether a file record with the given ID is stored.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// GetAll returns every stored file record, ordered by ID.
	GetAll(ctx context.Context) ([]*core.KnowledgeFile, error)

	// Delete removes a file record. It does not touch sections or chunks.
	// Returns ErrNotFound if the record doesn't exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SectionStore provides durable CRUD for sections.
// Sections are stored without their chunks; use ChunkStore.GetBySection to
// hydrate them.
type SectionStore interface {
	// Add stores a section and indexes it by (FileID, Index).
	Add(ctx context.Context, section *core.Section) error

	// Get retrieves a section by ID.
	// Returns ErrNotFound if the section doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*core.Section, error)

	// GetByIndex retrieves the section at position index within a file.
	// Returns ErrNotFound if there is no such section.
	GetByIndex(ctx context.Context, fileID uuid.UUID, index int) (*core.Section, error)

	// GetByFile returns all sections of a file ordered by Index.
	GetByFile(ctx context.Context, fileID uuid.UUID) ([]*core.Section, error)

	// DeleteByFile removes every section of a file and returns how many were removed.
	DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error)
}

// ChunkStore provides durable CRUD for chunks.
type ChunkStore interface {
	// Add stores a chunk and indexes it by section and by file.
	Add(ctx context.Context, chunk *core.Chunk) error

	// Get retrieves a chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*core.Chunk, error)

	// Update replaces an existing chunk, typically to store a new embedding.
	// Returns ErrNotFound if the chunk doesn't exist.
	Update(ctx context.Context, chunk *core.Chunk) error

	// GetBySection returns the chunks of a section ordered by Index.
	GetBySection(ctx context.Context, sectionID uuid.UUID) ([]*core.Chunk, error)

	// IDsByFile returns the IDs of every chunk that belongs to a file.
	IDsByFile(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error)

	// DeleteByFile removes every chunk of a file and returns how many were removed.
	DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error)
}

// VectorStore indexes chunk embeddings and answers nearest-neighbor queries
// by cosine similarity.
//
// Search is read-only and safe for any number of concurrent callers. Writes
// are serialized per ID; different IDs may be written concurrently.
type VectorStore interface {
	// Add inserts or replaces the vector for id. A replaced id keeps its
	// original insertion position for tie-breaking.
	Add(ctx context.Context, id uuid.UUID, vector []float32) error

	// Remove deletes the vector for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id uuid.UUID) error

	// Search returns up to k matches ordered by descending cosine similarity.
	// Equal similarities keep insertion order. Zero-norm vectors score 0.
	Search(ctx context.Context, query []float32, k int) ([]core.VectorMatch, error)

	// Len returns the number of stored vectors.
	Len(ctx context.Context) (int, error)
}

// Stores groups the four stores the indexing pipeline and searcher need.
type Stores struct {
	Files    FileStore
	Sections SectionStore
	Chunks   ChunkStore
	Vectors  VectorStore
}

// Validate reports the first missing store.
func (s *Stores) Validate() error {
	switch {
	case s == nil:
		return ErrStoresRequired
	case s.Files == nil:
		return ErrFileStoreRequired
	case s.Sections == nil:
		return ErrSectionStoreRequired
	case s.Chunks == nil:
		return ErrChunkStoreRequired
	case s.Vectors == nil:
		return ErrVectorStoreRequired
	}
	return nil
}
