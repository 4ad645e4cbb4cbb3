package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
)

// applicationName tags daemon and CLI connections in pg_stat_activity
const applicationName = "ytskip"

const connectTimeout = 10 * time.Second

// NewDatabasePool opens the pool behind the postgres key/value store and
// checks the server answers
func NewDatabasePool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	dbConfig, err := config.ParseDatabaseConfig()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArg, "failed to parse database config")
	}
	poolConfig, err := newPoolConfig(dbConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to reach database at "+dbConfig.Host)
	}
	return pool, nil
}

// newPoolConfig turns a DatabaseConfig into pool settings. The store issues
// single-row statements only, so the pool stays small.
func newPoolConfig(dbConfig *DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dbConfig.ConnectionString())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArg, "invalid database connection settings")
	}

	poolConfig.MaxConns = dbConfig.MaxConns
	poolConfig.MinConns = dbConfig.MinConns
	poolConfig.MaxConnLifetime = dbConfig.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbConfig.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	return poolConfig, nil
}
