package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the session_origins table.
const Schema = `
CREATE TABLE IF NOT EXISTS session_origins (
    session_id  TEXT         PRIMARY KEY,
    origin      TEXT         NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. *pgxpool.Pool
// satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore is a [Store] backed by the session_origins table, so the
// carried-over origin survives restarts and is shared between replicas.
type PostgresStore struct {
	db            DB
	defaultOrigin string
}

// NewPostgresStore returns a store using db. Call Migrate before first use.
func NewPostgresStore(db DB, defaultOrigin string) *PostgresStore {
	return &PostgresStore{db: db, defaultOrigin: defaultOrigin}
}

// DefaultOrigin implements [Defaulter].
func (s *PostgresStore) DefaultOrigin() string { return s.defaultOrigin }

// Migrate creates the session_origins table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// LastOrigin implements [Store].
func (s *PostgresStore) LastOrigin(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrEmptyID
	}
	const q = `SELECT origin FROM session_origins WHERE session_id = $1`

	var origin string
	if err := s.db.QueryRow(ctx, q, id).Scan(&origin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.defaultOrigin, nil
		}
		return "", fmt.Errorf("session: last origin: %w", err)
	}
	return origin, nil
}

// SetLastOrigin implements [Store].
func (s *PostgresStore) SetLastOrigin(ctx context.Context, id, station string) error {
	if id == "" {
		return ErrEmptyID
	}
	const q = `
		INSERT INTO session_origins (session_id, origin, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE
		    SET origin = EXCLUDED.origin, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.Exec(ctx, q, id, station); err != nil {
		return fmt.Errorf("session: set last origin: %w", err)
	}
	return nil
}
