package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/carecompanion/pkg/config"
)

const defaultDialTimeout = 3 * time.Second

// Client wraps the go-redis client shared by the lookup cache and the
// locator event bus.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the server answers within the dial
// timeout.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr(), err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Ping reports whether the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
