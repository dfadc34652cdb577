package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds connection-pool settings. Zero values fall back to the
// defaults applied in NewConnection.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxConnections == 0 {
		out.MaxConnections = 25
	}
	if out.MaxConnLifetime == 0 {
		out.MaxConnLifetime = time.Hour
	}
	if out.MaxConnIdleTime == 0 {
		out.MaxConnIdleTime = 30 * time.Minute
	}
	return out
}

// DB wraps a pgxpool connection pool. Both the assistant's schema catalog
// and the query executor share this pool; the executor only ever runs
// validated read-only statements through it.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool against cfg.URL and verifies it with a ping
// before handing it out.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	settings := cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = settings.MaxConnections
	poolCfg.MaxConnLifetime = settings.MaxConnLifetime
	poolCfg.MaxConnIdleTime = settings.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases all pooled connections.
func (db *DB) Close() {
	db.Pool.Close()
}
