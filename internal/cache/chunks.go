package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// MinChunkTTL is the shortest expiry applied to cached chunk lists.
const MinChunkTTL = 60 * time.Second

// ChunkKey returns the cache key holding an episode's chunk list.
func ChunkKey(episodeID string) string {
	return fmt.Sprintf("netplus:episode:%s:chunks", episodeID)
}

// ChunkCache stores the full chunk list of an episode, oldest first.
// Backend failures are logged and reported as misses. A nil *ChunkCache
// is valid and always misses.
type ChunkCache struct {
	backend Cache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewChunkCache wraps backend. A ttl below MinChunkTTL is raised to it.
func NewChunkCache(backend Cache, ttl time.Duration, logger *slog.Logger) *ChunkCache {
	if ttl < MinChunkTTL {
		ttl = MinChunkTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkCache{backend: backend, ttl: ttl, logger: logger}
}

// TTL returns the expiry applied on Put.
func (c *ChunkCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get returns the cached chunk list for episodeID. An empty cached list
// counts as a miss.
func (c *ChunkCache) Get(ctx context.Context, episodeID string) ([]models.Chunk, bool) {
	if c == nil || c.backend == nil {
		return nil, false
	}
	raw, ok, err := c.backend.Get(ctx, ChunkKey(episodeID))
	if err != nil {
		c.logger.Warn("chunk cache read failed", "episode_id", episodeID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		c.logger.Warn("chunk cache entry unreadable", "episode_id", episodeID, "error", err)
		return nil, false
	}
	if len(chunks) == 0 {
		return nil, false
	}
	return chunks, true
}

// Put stores chunks for episodeID.
func (c *ChunkCache) Put(ctx context.Context, episodeID string, chunks []models.Chunk) error {
	if c == nil || c.backend == nil {
		return nil
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	if err := c.backend.Set(ctx, ChunkKey(episodeID), raw, c.ttl); err != nil {
		return fmt.Errorf("cache chunks: %w", err)
	}
	return nil
}

// Warm loads every chunk of an episode from src and stores it. It returns
// the number of chunks cached.
func (c *ChunkCache) Warm(ctx context.Context, src store.ChunkReader, episodeID string) (int, error) {
	if c == nil || c.backend == nil {
		return 0, nil
	}
	chunks, err := src.EpisodeChunks(ctx, episodeID)
	if err != nil {
		return 0, fmt.Errorf("load chunks: %w", err)
	}
	if err := c.Put(ctx, episodeID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Invalidate drops the cached list for episodeID.
func (c *ChunkCache) Invalidate(ctx context.Context, episodeID string) error {
	if c == nil || c.backend == nil {
		return nil
	}
	if err := c.backend.Delete(ctx, ChunkKey(episodeID)); err != nil {
		return fmt.Errorf("invalidate chunks: %w", err)
	}
	return nil
}
