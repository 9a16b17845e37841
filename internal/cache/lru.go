package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRU is an in-process Cache. Entries expire after the smaller of the
// per-call ttl and the maxTTL given to NewLRU.
type LRU struct {
	entries *expirable.LRU[string, lruEntry]
	now     func() time.Time
}

var _ Cache = (*LRU)(nil)

// NewLRU creates a cache holding at most size entries.
func NewLRU(size int, maxTTL time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{
		entries: expirable.NewLRU[string, lruEntry](size, nil, maxTTL),
		now:     time.Now,
	}
}

func (c *LRU) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *LRU) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := lruEntry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

func (c *LRU) Delete(ctx context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}
