// Package postgres stores session cart identifiers in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/lumiere-storefront/db"
	"github.com/xenking/lumiere-storefront/internal/storage"
)

const (
	getCartIDSQL = `SELECT cart_id FROM cart_sessions WHERE session_key = $1`

	upsertCartIDSQL = `INSERT INTO cart_sessions (session_key, cart_id)
		VALUES ($1, $2)
		ON CONFLICT (session_key) DO UPDATE SET cart_id = EXCLUDED.cart_id, updated_at = now()`

	deleteCartIDSQL = `DELETE FROM cart_sessions WHERE session_key = $1`

	deleteStaleSQL = `DELETE FROM cart_sessions WHERE updated_at < $1`
)

// NewPool creates a pgxpool.Pool from a connection URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

var _ storage.KeyValue = (*Store)(nil)

// Store implements storage.KeyValue over the cart_sessions table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the cart identifier of a session.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var cartID string
	err := s.pool.QueryRow(ctx, getCartIDSQL, key).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", errors.Wrapf(err, "get cart id for session %q", key)
	}
	return cartID, nil
}

// Set stores the cart identifier of a session, replacing any previous one.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, upsertCartIDSQL, key, value); err != nil {
		return errors.Wrapf(err, "save cart id for session %q", key)
	}
	return nil
}

// Delete forgets the cart identifier of a session.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteCartIDSQL, key); err != nil {
		return errors.Wrapf(err, "delete cart id for session %q", key)
	}
	return nil
}

// DeleteStale removes sessions not written since before cutoff and returns
// how many were removed.
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteStaleSQL, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "delete stale sessions")
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
