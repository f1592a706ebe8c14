// Package tiktoken adapts the BPE encodings of pkoukk/tiktoken-go to
// ai.Tokenizer.
//
// Encodings are loaded on first use from the network and cached in the
// directory named by TIKTOKEN_CACHE_DIR when it is set.
package tiktoken

import (
	"fmt"
	"log/slog"

	tk "github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/kbase/ai"
)

// Tokenizer implements ai.Tokenizer over a tiktoken BPE encoding.
// Special tokens are treated as ordinary text so arbitrary documents never
// trip the encoder's special-token guard.
type Tokenizer struct {
	encoding *tk.Tiktoken
	name     string
}

var _ ai.Tokenizer = (*Tokenizer)(nil)

// NewTokenizer loads the named encoding (e.g. "cl100k_base").
func NewTokenizer(encoding string) (*Tokenizer, error) {
	enc, err := tk.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer encoding %q: %w", encoding, err)
	}
	slog.Default().With("component", "tiktoken").Debug("loaded encoding", "encoding", encoding)
	return &Tokenizer{encoding: enc, name: encoding}, nil
}

// NewTokenizerForModel loads the encoding registered for an OpenAI model name.
func NewTokenizerForModel(model string) (*Tokenizer, error) {
	enc, err := tk.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer for model %q: %w", model, err)
	}
	return &Tokenizer{encoding: enc, name: model}, nil
}

// Name returns the encoding or model name the tokenizer was built from.
func (t *Tokenizer) Name() string {
	return t.name
}

func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.EncodeOrdinary(text))
}

func (t *Tokenizer) Encode(text string) []int {
	return t.encoding.EncodeOrdinary(text)
}

func (t *Tokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}
