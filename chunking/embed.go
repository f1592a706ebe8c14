package chunking

import (
	"context"
	"iter"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbase/ai"
)

// embeddedChunk is a rawChunk with its embedding attached.
type embeddedChunk struct {
	rawChunk
	embedding []float32
}

type embedResult struct {
	embedding []float32
	err       error
}

// embedSequential embeds each chunk as it is pulled.
func embedSequential(ctx context.Context, embedder ai.Embedder, chunks iter.Seq2[rawChunk, error]) iter.Seq2[embeddedChunk, error] {
	return func(yield func(embeddedChunk, error) bool) {
		for chunk, err := range chunks {
			if err != nil {
				yield(embeddedChunk{}, err)
				return
			}
			embedding, err := embedder.EmbedText(ctx, chunk.content)
			if err != nil {
				yield(embeddedChunk{}, err)
				return
			}
			if !yield(embeddedChunk{rawChunk: chunk, embedding: embedding}, nil) {
				return
			}
		}
	}
}

// embedWindowed keeps up to window chunks embedding on pool at once and
// yields them in the order they were cut.
func embedWindowed(ctx context.Context, embedder ai.Embedder, pool *ants.Pool, window int, chunks iter.Seq2[rawChunk, error]) iter.Seq2[embeddedChunk, error] {
	return func(yield func(embeddedChunk, error) bool) {
		type pending struct {
			chunk  rawChunk
			result chan embedResult
		}
		var queue []pending

		drainOne := func() bool {
			head := queue[0]
			queue = queue[1:]
			var res embedResult
			select {
			case res = <-head.result:
			case <-ctx.Done():
				res.err = ctx.Err()
			}
			if res.err != nil {
				yield(embeddedChunk{}, res.err)
				return false
			}
			return yield(embeddedChunk{rawChunk: head.chunk, embedding: res.embedding}, nil)
		}

		for chunk, err := range chunks {
			if err != nil {
				yield(embeddedChunk{}, err)
				return
			}
			result := make(chan embedResult, 1)
			content := chunk.content
			if err := pool.Submit(func() {
				embedding, err := embedder.EmbedText(ctx, content)
				result <- embedResult{embedding: embedding, err: err}
			}); err != nil {
				yield(embeddedChunk{}, err)
				return
			}
			queue = append(queue, pending{chunk: chunk, result: result})
			if len(queue) >= window && !drainOne() {
				return
			}
		}
		for len(queue) > 0 {
			if !drainOne() {
				return
			}
		}
	}
}
