package chunking

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/kbase/ai"
)

// rawChunk is a token-bounded slice of text not yet embedded.
type rawChunk struct {
	content string
	tokens  int
}

// chunker accumulates segments into chunks no larger than maxTokens.
type chunker struct {
	tokenizer ai.Tokenizer
	maxTokens int
}

// chunks lazily groups segs into token-bounded chunks. A stop signal always
// closes the current chunk and opens the next one.
func (c *chunker) chunks(segs iter.Seq2[segment, error]) iter.Seq2[rawChunk, error] {
	return func(yield func(rawChunk, error) bool) {
		var buf string

		emit := func(text string) bool {
			for _, chunk := range c.finalize(text) {
				if !yield(chunk, nil) {
					return false
				}
			}
			return true
		}

		for seg, err := range segs {
			if err != nil {
				yield(rawChunk{}, err)
				return
			}

			if seg.signal {
				if !emit(buf) {
					return
				}
				buf = ""
			}

			candidate := buf + seg.text
			if c.tokenizer.CountTokens(candidate) <= c.maxTokens {
				buf = candidate
				continue
			}

			if !emit(buf) {
				return
			}
			buf = ""
			if c.tokenizer.CountTokens(seg.text) <= c.maxTokens {
				buf = seg.text
				continue
			}

			parts := c.split(seg.text)
			for _, part := range parts[:len(parts)-1] {
				if !emit(part) {
					return
				}
			}
			buf = parts[len(parts)-1]
		}
		emit(buf)
	}
}

// finalize trims text and re-checks the budget on the trimmed form.
// Empty text yields nothing.
func (c *chunker) finalize(text string) []rawChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if n := c.tokenizer.CountTokens(text); n <= c.maxTokens {
		return []rawChunk{{content: text, tokens: n}}
	}

	var out []rawChunk
	for _, part := range c.split(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, rawChunk{content: part, tokens: c.tokenizer.CountTokens(part)})
	}
	return out
}

// split hard-cuts text into pieces of at most maxTokens tokens. Window ends
// are pulled back a few tokens when that avoids cutting a UTF-8 sequence.
func (c *chunker) split(text string) []string {
	const utf8Slack = 3

	tokens := c.tokenizer.Encode(text)
	var parts []string
	for start := 0; start < len(tokens); {
		end := min(start+c.maxTokens, len(tokens))
		best, bestEnd := "", 0
		for e := end; e > start && (bestEnd == 0 || e >= bestEnd-utf8Slack); e-- {
			part := c.tokenizer.Decode(tokens[start:e])
			if c.tokenizer.CountTokens(part) > c.maxTokens {
				continue
			}
			if bestEnd == 0 {
				best, bestEnd = part, e
			}
			if utf8.ValidString(part) {
				best, bestEnd = part, e
				break
			}
		}
		if bestEnd == 0 {
			// Decoding never re-encodes within budget; fall back to one token.
			best, bestEnd = c.tokenizer.Decode(tokens[start:start+1]), start+1
		}
		parts = append(parts, best)
		start = bestEnd
	}
	if len(parts) == 0 {
		parts = append(parts, "")
	}
	return parts
}
