package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is wrapped by CacheProvider.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider stores upstream lookup payloads (geocodes, terminology rows)
// so repeated queries skip the network.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value for ttl. A non-positive ttl keeps it until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LoadCached decodes the payload under key into dst. It reports false on a
// miss, a nil cache, or a payload that no longer decodes.
func LoadCached(ctx context.Context, c CacheProvider, key string, dst any) bool {
	if c == nil {
		return false
	}
	raw, err := c.Get(ctx, key)
	if err != nil || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// StoreCached encodes v and stores it under key. A nil cache is a no-op.
func StoreCached(ctx context.Context, c CacheProvider, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, payload, ttl)
}
