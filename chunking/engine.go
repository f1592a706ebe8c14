// Package chunking turns a text stream into sections of embedded chunks.
//
// The work happens in three lazy tiers. A segmenter reads the stream into
// words and stop signals, a chunker packs those into token-bounded chunks,
// and a sectioner groups embedded chunks into topically coherent sections.
// Each tier pulls from the one before it, so memory stays bounded by one
// section plus the embedding window.
package chunking

import (
	"context"
	"io"
	"iter"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/core"
)

// Engine produces sections from text streams. It is safe for concurrent use;
// each call to Sections owns its own state.
type Engine struct {
	config    Config
	tokenizer ai.Tokenizer
	embedder  ai.Embedder
	pool      *ants.Pool
	signals   signalSet
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the whole configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) error {
		e.config = config
		return nil
	}
}

// WithMaxTokensPerChunk sets the chunk token budget.
func WithMaxTokensPerChunk(n int) Option {
	return func(e *Engine) error {
		e.config.MaxTokensPerChunk = n
		return nil
	}
}

// WithMaxTokensPerSection sets the section token budget.
func WithMaxTokensPerSection(n int) Option {
	return func(e *Engine) error {
		e.config.MaxTokensPerSection = n
		return nil
	}
}

// WithStopSignals replaces the stop signal set.
func WithStopSignals(signals ...string) Option {
	return func(e *Engine) error {
		e.config.StopSignals = signals
		return nil
	}
}

// WithShiftSigma sets the topic-shift sensitivity.
func WithShiftSigma(sigma float64) Option {
	return func(e *Engine) error {
		e.config.ShiftSigma = sigma
		return nil
	}
}

// WithEmbedWorkers sets how many chunks may be embedding at once.
func WithEmbedWorkers(n int) Option {
	return func(e *Engine) error {
		e.config.EmbedWorkers = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates an Engine. Call Release when done.
func NewEngine(tokenizer ai.Tokenizer, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if tokenizer == nil {
		return nil, ErrTokenizerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		config:    DefaultConfig(),
		tokenizer: tokenizer,
		embedder:  embedder,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	e.logger = e.logger.With("component", "chunking")
	e.signals = newSignalSet(e.config.StopSignals)

	if e.config.EmbedWorkers > 1 {
		pool, err := ants.NewPool(e.config.EmbedWorkers)
		if err != nil {
			return nil, err
		}
		e.pool = pool
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Release frees the embedding worker pool.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Sections streams the sections of r. Section indices start at 0 and chunk
// indices restart at 0 in every section. FileID is left for the caller.
//
// The sequence stops after the first error. It cannot be restarted without
// a fresh reader.
func (e *Engine) Sections(ctx context.Context, r io.Reader) iter.Seq2[*core.Section, error] {
	s := &sectioner{
		maxTokens:  e.config.MaxTokensPerSection,
		shiftSigma: e.config.ShiftSigma,
	}
	return func(yield func(*core.Section, error) bool) {
		count := 0
		for section, err := range s.sections(e.embedded(ctx, r)) {
			if err != nil {
				yield(nil, err)
				return
			}
			count++
			e.logger.Debug("section cut", "index", section.Index, "chunks", len(section.Chunks))
			if !yield(section, nil) {
				return
			}
		}
		e.logger.Debug("stream exhausted", "sections", count)
	}
}

func (e *Engine) chunks(r io.Reader) iter.Seq2[rawChunk, error] {
	c := &chunker{tokenizer: e.tokenizer, maxTokens: e.config.MaxTokensPerChunk}
	return c.chunks(segments(r, e.signals))
}

func (e *Engine) embedded(ctx context.Context, r io.Reader) iter.Seq2[embeddedChunk, error] {
	chunks := e.chunks(r)
	if e.pool == nil {
		return embedSequential(ctx, e.embedder, chunks)
	}
	return embedWindowed(ctx, e.embedder, e.pool, e.config.EmbedWorkers, chunks)
}
