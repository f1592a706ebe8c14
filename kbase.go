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


// Package kbase wires the stores, the AI provider and the indexing, search
// and re-embedding components into one Database handle.
package kbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ai/openai"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/reembed"
	"github.com/poiesic/kbase/search"
	"github.com/poiesic/kbase/storage"
	"github.com/poiesic/kbase/storage/badger"
	"github.com/poiesic/kbase/storage/postgres"
)

// Database owns the stores and the AI provider. Components built from it
// share both and must not outlive Close.
type Database struct {
	badger   *badger.Stores
	stores   storage.Stores
	pool     *pgxpool.Pool
	provider ai.AIProvider
	aiConfig *ai.Config
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig    *ai.Config
	provider    ai.AIProvider
	postgresURL string
	vectorTable string
	logger      *slog.Logger
}

// WithAIConfig sets the embedding and tokenizer settings used to build the
// default OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies a ready AI provider instead of building one.
// The Database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithPostgresVectors keeps chunk vectors in a pgvector table reached
// through url. An empty table uses the store's default.
func WithPostgresVectors(url, table string) DatabaseOption {
	return func(o *databaseOptions) {
		o.postgresURL = url
		o.vectorTable = table
	}
}

// WithDatabaseLogger sets the logger handed to every component. A nil
// logger keeps slog.Default().
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens (or creates) the badger stores at filePath.
func NewDatabase(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	stores, err := badger.OpenStores(filePath)
	if err != nil {
		return nil, err
	}
	return newDatabase(ctx, stores, opts)
}

// NewMemoryDatabase creates a Database over in-memory badger stores.
func NewMemoryDatabase(ctx context.Context, opts ...DatabaseOption) (*Database, error) {
	stores, err := badger.NewMemoryStores()
	if err != nil {
		return nil, err
	}
	return newDatabase(ctx, stores, opts)
}

func newDatabase(ctx context.Context, stores *badger.Stores, opts []DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{
		badger:   stores,
		stores:   stores.Stores,
		aiConfig: options.aiConfig,
		logger:   options.logger,
	}

	if options.postgresURL != "" {
		if err := db.usePostgres(ctx, options.postgresURL, options.vectorTable); err != nil {
			stores.Close()
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			db.closeStores()
			return nil, err
		}
	}
	db.provider = provider

	return db, nil
}

func (db *Database) usePostgres(ctx context.Context, url, table string) error {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	opts := []postgres.Option{postgres.WithLogger(db.logger)}
	if table != "" {
		opts = append(opts, postgres.WithTable(table))
	}
	vectors, err := postgres.NewVectorStore(pool, opts...)
	if err != nil {
		pool.Close()
		return err
	}
	if err := vectors.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to migrate vector table: %w", err)
	}
	db.pool = pool
	db.stores.Vectors = vectors
	return nil
}

// Stores returns the stores every component works against.
func (db *Database) Stores() *storage.Stores {
	return &db.stores
}

// Provider returns the AI provider.
func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewPipeline creates an indexing pipeline. When the AI config names an
// embedding dimension it is enforced; opts may override it.
func (db *Database) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{ingestion.WithLogger(db.logger)}
	if db.aiConfig != nil && db.aiConfig.EmbeddingDimension > 0 {
		defaults = append(defaults, ingestion.WithEmbeddingDimension(db.aiConfig.EmbeddingDimension))
	}
	return ingestion.NewPipeline(&db.stores, db.provider, append(defaults, opts...)...)
}

// NewSearcher creates a searcher over the indexed chunks.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(&db.stores, db.provider, append([]search.Option{search.WithLogger(db.logger)}, opts...)...)
}

// NewReembedder creates a reembedder using the provider's embedder.
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(&db.stores, db.provider.Embedder(), config, progress, reembed.WithLogger(db.logger))
}

// RemoveFile deletes a file with its sections, chunks and vectors.
// Returns storage.ErrNotFound if the file is unknown.
func (db *Database) RemoveFile(ctx context.Context, fileID uuid.UUID) error {
	pipeline, err := db.NewPipeline(ingestion.WithPoolSize(1))
	if err != nil {
		return err
	}
	defer pipeline.Release()
	return pipeline.Remove(ctx, fileID)
}

// Close releases the provider, the postgres pool and the stores.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.closeStores(); err != nil {
		db.logger.Error("error closing stores", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) closeStores() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return db.badger.Close()
}
