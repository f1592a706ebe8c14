// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

const (
	// DefaultBatchSize is the default number of chunks embedded per call.
	DefaultBatchSize = 100
)

// ChunkIterator walks the chunks of every indexed file in batches. Files are
// visited in ID order, chunks in section then chunk order. Batches never
// span files.
type ChunkIterator struct {
	stores    storage.Stores
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch; values <= 0 use DefaultBatchSize
func NewChunkIterator(stores storage.Stores, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		stores:    stores,
		batchSize: batchSize,
	}
}

// Files returns the files whose chunks ForEach visits. Only Indexed files
// qualify; any other status will be rebuilt by the next indexing run.
func (it *ChunkIterator) Files(ctx context.Context) ([]*core.KnowledgeFile, error) {
	all, err := it.stores.Files.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	indexed := make([]*core.KnowledgeFile, 0, len(all))
	for _, f := range all {
		if f.Status == core.StatusIndexed {
			indexed = append(indexed, f)
		}
	}
	return indexed, nil
}

// Count returns the number of chunks ForEach would visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	files, err := it.Files(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, f := range files {
		ids, err := it.stores.Chunks.IDsByFile(ctx, f.ID)
		if err != nil {
			return 0, fmt.Errorf("count chunks of %s: %w", f.ID, err)
		}
		total += len(ids)
	}
	return total, nil
}

// ForEach calls fn with each batch of chunks. done is called after the last
// batch of each file, including files with no chunks. Iteration stops on the
// first error from fn or done, or when ctx is canceled.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error, done func(*core.KnowledgeFile)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := it.Files(ctx)
	if err != nil {
		return err
	}

	for _, file := range files {
		chunks, err := it.fileChunks(ctx, file)
		if err != nil {
			return err
		}

		for i := 0; i < len(chunks); i += it.batchSize {
			end := min(i+it.batchSize, len(chunks))
			if err := fn(chunks[i:end]); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if done != nil {
			done(file)
		}
	}

	return nil
}

func (it *ChunkIterator) fileChunks(ctx context.Context, file *core.KnowledgeFile) ([]*core.Chunk, error) {
	sections, err := it.stores.Sections.GetByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("load sections of %s: %w", file.ID, err)
	}
	var chunks []*core.Chunk
	for _, section := range sections {
		sectionChunks, err := it.stores.Chunks.GetBySection(ctx, section.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunks of section %s: %w", section.ID, err)
		}
		chunks = append(chunks, sectionChunks...)
	}
	return chunks, nil
}
