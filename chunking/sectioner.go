package chunking

import (
	"iter"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
)

// sectioner groups embedded chunks into sections.
type sectioner struct {
	maxTokens  int
	shiftSigma float64
}

// sectionState is the in-progress section threaded through the stream.
type sectionState struct {
	section *core.Section
	tokens  int
	prev    []float32
	stats   similarityStats
}

func newSectionState(index int) sectionState {
	return sectionState{section: &core.Section{ID: uuid.New(), Index: index}}
}

// append adds chunk to the section and records its similarity to the
// previous chunk.
func (st sectionState) append(chunk embeddedChunk, similarity float64, hasPrev bool) sectionState {
	st.section.Chunks = append(st.section.Chunks, &core.Chunk{
		ID:        uuid.New(),
		SectionID: st.section.ID,
		Index:     len(st.section.Chunks),
		Content:   chunk.content,
		Tokens:    chunk.tokens,
		Embedding: chunk.embedding,
	})
	st.tokens += chunk.tokens
	st.prev = chunk.embedding
	if hasPrev {
		st.stats = st.stats.add(similarity)
	}
	return st
}

// sections lazily groups chunks into sections. A section closes when the
// next chunk would exceed the token budget or when its similarity to the
// previous chunk drops below the section's running mean by more than
// shiftSigma standard deviations.
func (s *sectioner) sections(chunks iter.Seq2[embeddedChunk, error]) iter.Seq2[*core.Section, error] {
	return func(yield func(*core.Section, error) bool) {
		st := newSectionState(0)

		for chunk, err := range chunks {
			if err != nil {
				yield(nil, err)
				return
			}

			if len(st.section.Chunks) == 0 {
				st = st.append(chunk, 0, false)
				continue
			}

			similarity := float64(core.CosineSimilarity(st.prev, chunk.embedding))
			if st.tokens+chunk.tokens > s.maxTokens || st.stats.shifted(similarity, s.shiftSigma) {
				if !yield(st.section, nil) {
					return
				}
				st = newSectionState(st.section.Index + 1).append(chunk, 0, false)
				continue
			}
			st = st.append(chunk, similarity, true)
		}

		if len(st.section.Chunks) > 0 {
			yield(st.section, nil)
		}
	}
}
