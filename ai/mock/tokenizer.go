package mock

import (
	"strings"
	"sync"
)

// WordTokenizer is a test double for ai.Tokenizer that treats every
// whitespace-separated word as one token. Decode joins words with single
// spaces, so round trips normalize whitespace.
type WordTokenizer struct {
	mu    sync.Mutex
	vocab map[string]int
	words []string
}

// NewWordTokenizer creates an empty word tokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{vocab: make(map[string]int)}
}

func (w *WordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (w *WordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()

	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, word := range fields {
		id, ok := w.vocab[word]
		if !ok {
			id = len(w.words)
			w.vocab[word] = id
			w.words = append(w.words, word)
		}
		ids[i] = id
	}
	return ids
}

func (w *WordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		if id >= 0 && id < len(w.words) {
			parts = append(parts, w.words[id])
		}
	}
	return strings.Join(parts, " ")
}
