// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
)

// Config holds the embedding service and tokenizer settings.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host" split_words:"true"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string `yaml:"embedding_model" split_words:"true"`

	// EmbeddingToken is the bearer token sent to the embedding service.
	// Local OpenAI-compatible servers accept any value.
	EmbeddingToken string `yaml:"embedding_token" split_words:"true"`

	// EmbeddingDimension is the vector length the model produces.
	// Zero disables dimension checks during indexing.
	EmbeddingDimension int `yaml:"embedding_dimension" split_words:"true"`

	// EmbeddingBatchSize caps how many texts go into one embedding request.
	// Default: 32
	EmbeddingBatchSize int `yaml:"embedding_batch_size" split_words:"true"`

	// TokenizerEncoding names the BPE encoding used to count tokens.
	// Example: "cl100k_base", "o200k_base"
	TokenizerEncoding string `yaml:"tokenizer_encoding" split_words:"true"`
}

type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithEmbeddingToken(token string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingToken = token
	}
}

func WithEmbeddingDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimension = dim
	}
}

func WithEmbeddingBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBatchSize = size
	}
}

func WithTokenizerEncoding(encoding string) ConfigOption {
	return func(c *Config) {
		c.TokenizerEncoding = encoding
	}
}

func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:      "http://localhost:11434/v1",
		EmbeddingModel:     "embeddinggemma",
		EmbeddingToken:     "none",
		EmbeddingDimension: 0,
		EmbeddingBatchSize: 32,
		TokenizerEncoding:  "cl100k_base",
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Normalize() {
	// Ensure EmbeddingHost ends with /v1 for OpenAI-compatible APIs
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.EmbeddingToken == "" {
		c.EmbeddingToken = "none"
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = 32
	}
}

func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.TokenizerEncoding == "" {
		return errors.New("ai config: TokenizerEncoding is required")
	}
	if c.EmbeddingDimension < 0 {
		return errors.New("ai config: EmbeddingDimension cannot be negative")
	}
	return nil
}
