package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
)

const (
	defaultMemoryEntries = 2048
	maxMemoryTTL         = 24 * time.Hour
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryAdapter is the in-process lookup cache used by the CLI and by the API
// when Redis is not configured. Entries are bounded by count and expire
// individually, never later than maxMemoryTTL.
type MemoryAdapter struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryAdapter holds at most size entries
func NewMemoryAdapter(size int) *MemoryAdapter {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	return &MemoryAdapter{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxMemoryTTL),
		now: time.Now,
	}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := a.lru.Get(key)
	if ok && !entry.expiresAt.IsZero() && !a.now().Before(entry.expiresAt) {
		a.lru.Remove(key)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	}
	return append([]byte(nil), entry.value...), nil
}

func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = a.now().Add(ttl)
	}
	a.lru.Add(key, entry)
	return nil
}

// Len counts stored entries, expired ones included
func (a *MemoryAdapter) Len() int {
	return a.lru.Len()
}
