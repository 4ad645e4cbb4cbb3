package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool interface for abstracting pgx connection pool
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// postgresStore implements Store using the kv_store table
type postgresStore struct {
	pool Pool
}

// NewPostgresStore creates a new instance of Store backed by PostgreSQL
func NewPostgresStore(pool Pool) Store {
	return &postgresStore{
		pool: pool,
	}
}

// Get retrieves a value by its key
func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sql := "SELECT value FROM kv_store WHERE key = $1"
	row := s.pool.QueryRow(ctx, sql, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, handlePostgreSQLError(err, "failed to get value")
	}

	return value, true, nil
}

// Set upserts a value
func (s *postgresStore) Set(ctx context.Context, key string, value []byte) error {
	sql := `INSERT INTO kv_store (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := s.pool.Exec(ctx, sql, key, value)
	if err != nil {
		return handlePostgreSQLError(err, "failed to set value")
	}
	return nil
}

// Remove deletes all given keys in one statement
func (s *postgresStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	sql := "DELETE FROM kv_store WHERE key = ANY($1)"
	_, err := s.pool.Exec(ctx, sql, keys)
	if err != nil {
		return handlePostgreSQLError(err, "failed to remove values")
	}
	return nil
}

// Keys lists every stored key in order
func (s *postgresStore) Keys(ctx context.Context) ([]string, error) {
	sql := "SELECT key FROM kv_store ORDER BY key"
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list keys")
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan key row")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate key rows")
	}

	return keys, nil
}

// Close closes the underlying pool
func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
