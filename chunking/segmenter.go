package chunking

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
	"unicode"
)

// maxSegmentBytes caps a single unbroken run so one "word" is never held whole.
const maxSegmentBytes = 4096

// segment is the smallest unit handed to the chunker: either a stop signal
// or a piece of text made of leading whitespace followed by one word.
type segment struct {
	text   string
	signal bool
}

// segments lazily splits r into segments. Stop signals are recognized at any
// byte position and always yielded on their own.
func segments(r io.Reader, signals signalSet) iter.Seq2[segment, error] {
	return func(yield func(segment, error) bool) {
		br := bufio.NewReader(r)
		var piece strings.Builder
		inWord := false

		flush := func() bool {
			if piece.Len() == 0 {
				return true
			}
			text := piece.String()
			piece.Reset()
			inWord = false
			return yield(segment{text: text}, nil)
		}

		for {
			if signals.maxLen > 0 {
				window, err := br.Peek(signals.maxLen)
				if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
					yield(segment{}, err)
					return
				}
				if sig := signals.match(window); sig != "" {
					if !flush() {
						return
					}
					if _, err := br.Discard(len(sig)); err != nil {
						yield(segment{}, err)
						return
					}
					if !yield(segment{text: sig, signal: true}, nil) {
						return
					}
					continue
				}
			}

			r, _, err := br.ReadRune()
			if err != nil {
				if errors.Is(err, io.EOF) {
					flush()
					return
				}
				yield(segment{}, err)
				return
			}

			if unicode.IsSpace(r) {
				if inWord && !flush() {
					return
				}
			} else {
				inWord = true
			}
			piece.WriteRune(r)
			if piece.Len() >= maxSegmentBytes && !flush() {
				return
			}
		}
	}
}
