package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/pkg/config"
	"github.com/zatekoja/carecompanion/pkg/retry"
)

const pingTimeout = 5 * time.Second

// Client owns the connection pool of the analytics database
type Client struct {
	db *sql.DB
}

// NewClient opens the pool sized from cfg and waits for the database with
// retryCfg backoff. The analytics store is optional, so callers treat an
// error as "run without analytics".
func NewClient(ctx context.Context, cfg *config.DatabaseConfig, retryCfg retry.Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("open analytics database: %w", err)
	}
	configurePool(db, cfg)

	attempt := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	onRetry := func(n int, err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", n).Dur("retry_in", wait).Str("host", cfg.Host).Msg("Analytics database not ready")
	}
	if err := retry.DoWithLog(ctx, retryCfg, "analytics database", attempt, onRetry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect analytics database %s: %w", cfg.Host, err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Int("max_open", cfg.MaxOpenConns).Msg("Analytics database connected")
	return &Client{db: db}, nil
}

func configurePool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// NewClientFromDB wraps an already opened pool, e.g. sqlmock in tests
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping reports whether the database answers
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}
