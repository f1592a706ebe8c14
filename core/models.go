package core

import (
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
)

// FingerprintSize is the length in bytes of a content fingerprint.
const FingerprintSize = sha256.Size

// IndexingStatus tracks where a file is in the indexing lifecycle.
type IndexingStatus int

const (
	// StatusPending marks a file that is known but not (or not yet fully) indexed.
	StatusPending IndexingStatus = iota
	// StatusIndexed marks a file whose sections, chunks and vectors are complete.
	StatusIndexed
	// StatusError marks a file whose last indexing run hit an invariant violation.
	StatusError
	// StatusUnsupportedContentType marks a file the pipeline refused to read.
	StatusUnsupportedContentType
)

func (s IndexingStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusIndexed:
		return "indexed"
	case StatusError:
		return "error"
	case StatusUnsupportedContentType:
		return "unsupported-content-type"
	default:
		return "unknown"
	}
}

// KnowledgeFile is the indexing record for one source document.
// ContentHash is the SHA-256 of the bytes that were last indexed successfully
// and is empty while the file is Pending.
type KnowledgeFile struct {
	ID          uuid.UUID
	Name        string
	ContentHash []byte
	ProcessedAt time.Time
	Status      IndexingStatus
}

// Section is a run of topically related, consecutive chunks of one file.
type Section struct {
	ID                uuid.UUID
	FileID            uuid.UUID
	Index             int
	Summary           string
	AdditionalContext string
	Chunks            []*Chunk // Populated by the chunking engine; stores persist chunks separately
}

// TokenCount returns the sum of the chunk token counts.
func (s *Section) TokenCount() int {
	total := 0
	for _, c := range s.Chunks {
		total += c.Tokens
	}
	return total
}

// Chunk is the smallest indexed unit of text.
type Chunk struct {
	ID        uuid.UUID
	SectionID uuid.UUID
	FileID    uuid.UUID
	Index     int
	Content   string
	Tokens    int       // Token count of Content as measured by the tokenizer
	Embedding []float32 // Nil until embedded
}

// VectorMatch is a single hit from a vector store search.
type VectorMatch struct {
	ID         uuid.UUID
	Similarity float32
}

// RelevanceMetrics are set-relative confidence figures for one search hit.
type RelevanceMetrics struct {
	CosineSimilarity  float32
	RelevanceScore    int
	NormalizedScore   float64
	StandardDeviation float64
}

// SearchResult is a hydrated, scored search hit.
type SearchResult struct {
	Chunk   *Chunk
	Section *Section
	File    *KnowledgeFile
	Metrics RelevanceMetrics
}
