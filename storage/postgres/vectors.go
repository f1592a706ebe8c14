// Package postgres provides a storage.VectorStore backed by PostgreSQL with
// the pgvector extension. Similarity is computed in SQL with the cosine
// distance operator.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// DefaultTable is the table used when WithTable is not supplied.
const DefaultTable = "chunk_vectors"

var (
	// ErrPoolRequired is returned when no connection pool is supplied.
	ErrPoolRequired = errors.New("postgres pool required")

	// ErrEmptyVector is returned when adding a vector with no dimensions.
	ErrEmptyVector = errors.New("vector has no dimensions")

	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("invalid table name")
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorStore implements storage.VectorStore on a pgvector column.
// Insertion order comes from a BIGSERIAL column that an upsert never touches.
type VectorStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Option configures a VectorStore.
type Option func(*VectorStore) error

// WithTable sets the table name.
func WithTable(name string) Option {
	return func(s *VectorStore) error {
		if !identifier.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidTable, name)
		}
		s.table = name
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) error {
		s.logger = logger
		return nil
	}
}

// NewVectorStore creates a VectorStore over pool. Call Migrate once before use.
func NewVectorStore(pool *pgxpool.Pool, opts ...Option) (*VectorStore, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	s := &VectorStore{
		pool:   pool,
		table:  DefaultTable,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "pgvector-store", "table", s.table)
	return s, nil
}

// Migrate creates the vector extension and the backing table if needed.
func (s *VectorStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			seq BIGSERIAL NOT NULL,
			embedding vector NOT NULL
		)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	s.logger.Debug("vector table ready")
	return nil
}

// Truncate removes every stored vector.
func (s *VectorStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, s.table))
	return err
}

// Add inserts or replaces the vector for id.
func (s *VectorStore) Add(ctx context.Context, id uuid.UUID, vector []float32) error {
	if id == uuid.Nil {
		return core.ErrEmptyID
	}
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding) VALUES ($1::uuid, $2)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding`, s.table)
	_, err := s.pool.Exec(ctx, query, id.String(), pgvector.NewVector(vector))
	return err
}

// Remove deletes the vector for id.
func (s *VectorStore) Remove(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1::uuid`, s.table)
	_, err := s.pool.Exec(ctx, query, id.String())
	return err
}

// Search returns the k stored vectors most similar to query.
//
// Rows whose dimension differs from the query and zero-norm rows (for which
// pgvector yields NaN) score 0, matching core.CosineSimilarity.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]core.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) == 0 {
		return s.unscored(ctx, k)
	}

	sql := fmt.Sprintf(`
		SELECT id::text, score FROM (
			SELECT id, seq,
			       CASE WHEN vector_dims(embedding) <> $2 THEN 0::float8
			            ELSE COALESCE(NULLIF(1 - (embedding <=> $1), 'NaN'::float8), 0::float8)
			       END AS score
			FROM %s
		) scored
		ORDER BY score DESC, seq ASC
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, sql, pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []core.VectorMatch
	for rows.Next() {
		var rawID string
		var score float64
		if err := rows.Scan(&rawID, &score); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, core.VectorMatch{ID: id, Similarity: clamp(score)})
	}
	return matches, rows.Err()
}

// unscored lists the first k rows in insertion order with similarity 0.
func (s *VectorStore) unscored(ctx context.Context, k int) ([]core.VectorMatch, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id::text FROM %s ORDER BY seq ASC LIMIT $1`, s.table), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []core.VectorMatch
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, core.VectorMatch{ID: id})
	}
	return matches, rows.Err()
}

// Len returns the number of stored vectors.
func (s *VectorStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

func clamp(score float64) float32 {
	switch {
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return float32(score)
}
