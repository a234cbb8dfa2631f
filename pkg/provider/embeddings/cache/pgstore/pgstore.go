// Package pgstore persists embedding vectors in PostgreSQL using pgvector.
// It implements cache.Store.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/railvox/pkg/provider/embeddings/cache"
)

// Schema is the DDL for the embedding_cache table. The vector column has no
// fixed length so that several models can share the table.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embedding_cache (
    model       TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    embedding   vector       NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (model, text)
);

CREATE INDEX IF NOT EXISTS idx_embedding_cache_created_at
    ON embedding_cache (created_at);
`

// DB is the database interface used by [Store]. *pgxpool.Pool satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ cache.Store = (*Store)(nil)

// Store is a cache.Store backed by the embedding_cache table. The pool must
// have pgvector types registered (see storage.Connect).
type Store struct {
	db DB
}

// New returns a Store using db. Call Migrate before first use.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the embedding_cache table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// Get implements cache.Store.
func (s *Store) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	const q = `SELECT embedding FROM embedding_cache WHERE model = $1 AND text = $2`

	var vec pgvector.Vector
	if err := s.db.QueryRow(ctx, q, model, text).Scan(&vec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgstore: get: %w", err)
	}
	return vec.Slice(), true, nil
}

// Put implements cache.Store.
func (s *Store) Put(ctx context.Context, model, text string, vec []float32) error {
	const q = `
		INSERT INTO embedding_cache (model, text, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (model, text) DO UPDATE SET
		    embedding  = EXCLUDED.embedding,
		    created_at = now()`

	if _, err := s.db.Exec(ctx, q, model, text, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("pgstore: put: %w", err)
	}
	return nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	const q = `DELETE FROM embedding_cache WHERE created_at < now() - make_interval(secs => $1)`

	tag, err := s.db.Exec(ctx, q, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("pgstore: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
