package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/mock"
	"github.com/poiesic/kbase/core"
	"github.com/stretchr/testify/require"
)

// runeTokenizer counts every rune as one token. It lets tests build
// unbroken runs longer than the chunk budget.
type runeTokenizer struct{}

func (runeTokenizer) CountTokens(text string) int { return len([]rune(text)) }

func (runeTokenizer) Encode(text string) []int {
	runes := []rune(text)
	out := make([]int, len(runes))
	for i, r := range runes {
		out[i] = int(r)
	}
	return out
}

func (runeTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

var _ ai.Tokenizer = runeTokenizer{}

func newTestEngine(t *testing.T, tokenizer ai.Tokenizer, embedder ai.Embedder, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(tokenizer, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(engine.Release)
	return engine
}

func collect(t *testing.T, engine *Engine, text string) []*core.Section {
	t.Helper()
	var sections []*core.Section
	for section, err := range engine.Sections(context.Background(), strings.NewReader(text)) {
		require.NoError(t, err)
		sections = append(sections, section)
	}
	return sections
}

func contents(sections []*core.Section) []string {
	var out []string
	for _, s := range sections {
		for _, c := range s.Chunks {
			out = append(out, c.Content)
		}
	}
	return out
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

// constantEmbedder returns the same vector for every text so similarity
// never shifts and only budgets cut sections.
func constantEmbedder() *mock.MockEmbedder {
	m := mock.NewMockEmbedderWithDimension(2)
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 1}, nil
	}
	return m
}
