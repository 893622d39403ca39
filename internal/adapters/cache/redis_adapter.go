package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	redisclient "github.com/zatekoja/carecompanion/internal/infrastructure/clients/redis"
)

// DefaultNamespace prefixes every key written by the shared Redis cache
const DefaultNamespace = "carecompanion:"

// RedisAdapter is the shared lookup cache used when several API replicas run
// against one Redis.
type RedisAdapter struct {
	rdb       redis.Cmdable
	namespace string
}

// NewRedisAdapter wraps client. An empty namespace uses DefaultNamespace.
func NewRedisAdapter(client *redisclient.Client, namespace string) *RedisAdapter {
	return newRedisAdapter(client.Client(), namespace)
}

func newRedisAdapter(rdb redis.Cmdable, namespace string) *RedisAdapter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisAdapter{rdb: rdb, namespace: namespace}
}

var _ providers.CacheProvider = (*RedisAdapter)(nil)

func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := a.rdb.Get(ctx, a.namespace+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

// Set writes value with ttl. Redis treats a zero expiration as persistent.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := a.rdb.Set(ctx, a.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
