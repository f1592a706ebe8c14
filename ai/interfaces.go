package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and must return vectors
// of one fixed dimension.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Tokenizer converts text to token ids and back. Chunk and section budgets are
// measured with CountTokens, never with character counts.
// Implementations must be thread-safe for concurrent use.
type Tokenizer interface {
	// CountTokens reports how many tokens text encodes to.
	CountTokens(text string) int

	// Encode converts text into token ids.
	Encode(text string) []int

	// Decode converts token ids back into text.
	Decode(tokens []int) string
}

// AIProvider aggregates the model-backed services the indexer needs.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Tokenizer returns the tokenizer matching the embedding model.
	// The returned Tokenizer is safe for concurrent use.
	Tokenizer() Tokenizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
