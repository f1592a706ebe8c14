package chunking

import (
	"fmt"
	"slices"
)

const (
	// DefaultMaxTokensPerChunk is the chunk token budget.
	DefaultMaxTokensPerChunk = 100

	// DefaultMaxTokensPerSection is the section token budget.
	DefaultMaxTokensPerSection = 1000

	// DefaultShiftSigma is how many standard deviations below the running
	// mean a similarity must fall to start a new section.
	DefaultShiftSigma = 1.0

	// DefaultEmbedWorkers embeds one chunk at a time.
	DefaultEmbedWorkers = 1
)

// DefaultStopSignals are markdown heading prefixes, the fenced code
// delimiter, and the bold marker.
var DefaultStopSignals = []string{"#", "##", "###", "####", "#####", "######", "```", "**"}

// Config holds the chunking and sectioning parameters.
type Config struct {
	MaxTokensPerChunk   int      `yaml:"max_tokens_per_chunk" split_words:"true"`
	MaxTokensPerSection int      `yaml:"max_tokens_per_section" split_words:"true"`
	StopSignals         []string `yaml:"stop_signals" split_words:"true"`
	ShiftSigma          float64  `yaml:"shift_sigma" split_words:"true"`
	EmbedWorkers        int      `yaml:"embed_workers" split_words:"true"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxTokensPerChunk:   DefaultMaxTokensPerChunk,
		MaxTokensPerSection: DefaultMaxTokensPerSection,
		StopSignals:         slices.Clone(DefaultStopSignals),
		ShiftSigma:          DefaultShiftSigma,
		EmbedWorkers:        DefaultEmbedWorkers,
	}
}

// Validate checks that the budgets are usable together.
func (c Config) Validate() error {
	if c.MaxTokensPerChunk < 1 {
		return fmt.Errorf("%w: max tokens per chunk must be positive, got %d", ErrInvalidConfig, c.MaxTokensPerChunk)
	}
	if c.MaxTokensPerSection < c.MaxTokensPerChunk {
		return fmt.Errorf("%w: max tokens per section (%d) is below max tokens per chunk (%d)",
			ErrInvalidConfig, c.MaxTokensPerSection, c.MaxTokensPerChunk)
	}
	if c.ShiftSigma < 0 {
		return fmt.Errorf("%w: shift sigma must not be negative, got %g", ErrInvalidConfig, c.ShiftSigma)
	}
	if c.EmbedWorkers < 1 {
		return fmt.Errorf("%w: embed workers must be positive, got %d", ErrInvalidConfig, c.EmbedWorkers)
	}
	for _, s := range c.StopSignals {
		if s == "" {
			return fmt.Errorf("%w: empty stop signal", ErrInvalidConfig)
		}
	}
	return nil
}
