// Package cache provides the byte cache backends used to keep warm copies of
// an episode's retrieval chunks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by configuration.
const (
	BackendRedis = "redis"
	BackendLRU   = "lru"
	BackendNone  = "none"
)
