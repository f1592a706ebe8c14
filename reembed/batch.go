package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// BatchProcessor regenerates embeddings for batches of chunks and writes
// them to both the chunk store and the vector store.
type BatchProcessor struct {
	chunks   storage.ChunkStore
	vectors  storage.VectorStore
	embedder ai.Embedder
	backoff  Backoff
}

// NewBatchProcessor creates a new batch processor. Each embedding call is
// retried according to backoff.
func NewBatchProcessor(stores storage.Stores, embedder ai.Embedder, backoff Backoff) *BatchProcessor {
	return &BatchProcessor{
		chunks:   stores.Chunks,
		vectors:  stores.Vectors,
		embedder: embedder,
		backoff:  backoff,
	}
}

// Process embeds a batch of chunks and persists the new vectors.
// Vectors are normalized to unit length; cosine ranking is unaffected.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	err := bp.backoff.Retry(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.backoff.MaxAttempts, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(chunks), len(embeddings))
	}

	for i, chunk := range chunks {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("chunk %s: %w", chunk.ID, core.ErrMissingEmbedding)
		}
		chunk.Embedding = NormalizeVector(embeddings[i])
	}

	// The chunk record is written first so a failure never leaves a vector
	// the chunk store disagrees with.
	for _, chunk := range chunks {
		if err := bp.chunks.Update(ctx, chunk); err != nil {
			return fmt.Errorf("failed to update chunk %s: %w", chunk.ID, err)
		}
		if err := bp.vectors.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	return nil
}
