// Package memory provides in-process implementations of the storage
// interfaces. Nothing is persisted; records are copied on the way in and out
// so callers cannot mutate stored state.
package memory

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// NewStores returns a fresh set of in-memory stores.
func NewStores() *storage.Stores {
	return &storage.Stores{
		Files:    NewFileStore(),
		Sections: NewSectionStore(),
		Chunks:   NewChunkStore(),
		Vectors:  NewVectorStore(),
	}
}

// FileStore implements storage.FileStore in memory.
type FileStore struct {
	mu    sync.RWMutex
	files map[uuid.UUID]core.KnowledgeFile
}

var _ storage.FileStore = (*FileStore)(nil)

// NewFileStore creates an empty FileStore.
func NewFileStore() *FileStore {
	return &FileStore{files: make(map[uuid.UUID]core.KnowledgeFile)}
}

func (s *FileStore) Add(ctx context.Context, file *core.KnowledgeFile) error {
	if err := core.ValidateFile(file); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; ok {
		return storage.ErrDuplicateKey
	}
	s.files[file.ID] = copyFile(file)
	return nil
}

func (s *FileStore) Get(ctx context.Context, id uuid.UUID) (*core.KnowledgeFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := copyFile(&file)
	return &out, nil
}

func (s *FileStore) Update(ctx context.Context, file *core.KnowledgeFile) error {
	if err := core.ValidateFile(file); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return storage.ErrNotFound
	}
	s.files[file.ID] = copyFile(file)
	return nil
}

func (s *FileStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[id]
	return ok, nil
}

func (s *FileStore) GetAll(ctx context.Context) ([]*core.KnowledgeFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.KnowledgeFile, 0, len(s.files))
	for _, file := range s.files {
		c := copyFile(&file)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *core.KnowledgeFile) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func copyFile(file *core.KnowledgeFile) core.KnowledgeFile {
	c := *file
	if len(file.ContentHash) == 0 {
		c.ContentHash = nil
	} else {
		c.ContentHash = slices.Clone(file.ContentHash)
	}
	return c
}

// SectionStore implements storage.SectionStore in memory.
type SectionStore struct {
	mu       sync.RWMutex
	sections map[uuid.UUID]core.Section
}

var _ storage.SectionStore = (*SectionStore)(nil)

// NewSectionStore creates an empty SectionStore.
func NewSectionStore() *SectionStore {
	return &SectionStore{sections: make(map[uuid.UUID]core.Section)}
}

func (s *SectionStore) Add(ctx context.Context, section *core.Section) error {
	if section == nil || section.ID == uuid.Nil {
		return core.ErrInvalidSection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sections[section.ID]; ok {
		return storage.ErrDuplicateKey
	}
	c := *section
	c.Chunks = nil
	s.sections[section.ID] = c
	return nil
}

func (s *SectionStore) Get(ctx context.Context, id uuid.UUID) (*core.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, ok := s.sections[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &section, nil
}

func (s *SectionStore) GetByIndex(ctx context.Context, fileID uuid.UUID, index int) (*core.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, section := range s.sections {
		if section.FileID == fileID && section.Index == index {
			return &section, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *SectionStore) GetByFile(ctx context.Context, fileID uuid.UUID) ([]*core.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Section
	for _, section := range s.sections {
		if section.FileID == fileID {
			out = append(out, &section)
		}
	}
	slices.SortFunc(out, func(a, b *core.Section) int { return cmp.Compare(a.Index, b.Index) })
	return out, nil
}

func (s *SectionStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, section := range s.sections {
		if section.FileID == fileID {
			delete(s.sections, id)
			count++
		}
	}
	return count, nil
}

// ChunkStore implements storage.ChunkStore in memory.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID]core.Chunk
}

var _ storage.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates an empty ChunkStore.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[uuid.UUID]core.Chunk)}
}

func (s *ChunkStore) Add(ctx context.Context, chunk *core.Chunk) error {
	if chunk == nil || chunk.ID == uuid.Nil {
		return core.ErrInvalidChunk
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[chunk.ID]; ok {
		return storage.ErrDuplicateKey
	}
	s.chunks[chunk.ID] = copyChunk(chunk)
	return nil
}

func (s *ChunkStore) Get(ctx context.Context, id uuid.UUID) (*core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := copyChunk(&chunk)
	return &out, nil
}

func (s *ChunkStore) Update(ctx context.Context, chunk *core.Chunk) error {
	if chunk == nil || chunk.ID == uuid.Nil {
		return core.ErrInvalidChunk
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[chunk.ID]; !ok {
		return storage.ErrNotFound
	}
	s.chunks[chunk.ID] = copyChunk(chunk)
	return nil
}

func (s *ChunkStore) GetBySection(ctx context.Context, sectionID uuid.UUID) ([]*core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Chunk
	for _, chunk := range s.chunks {
		if chunk.SectionID == sectionID {
			c := copyChunk(&chunk)
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *core.Chunk) int { return cmp.Compare(a.Index, b.Index) })
	return out, nil
}

func (s *ChunkStore) IDsByFile(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for id, chunk := range s.chunks {
		if chunk.FileID == fileID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *ChunkStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, chunk := range s.chunks {
		if chunk.FileID == fileID {
			delete(s.chunks, id)
			count++
		}
	}
	return count, nil
}

func copyChunk(chunk *core.Chunk) core.Chunk {
	c := *chunk
	if chunk.Embedding != nil {
		c.Embedding = slices.Clone(chunk.Embedding)
	}
	return c
}
