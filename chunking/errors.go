package chunking

import "errors"

var (
	// ErrInvalidConfig is returned when chunking parameters are inconsistent.
	ErrInvalidConfig = errors.New("invalid chunking config")

	// ErrTokenizerRequired is returned when a tokenizer is not provided.
	ErrTokenizerRequired = errors.New("tokenizer required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
