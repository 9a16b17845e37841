package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/cache"
	"github.com/raphaelgruber/spoilerguard/internal/embedding"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/parser"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

const embedBatchSize = 32

// IndexStore is the storage a ChunkIndexer reads lines from and writes
// chunks to.
type IndexStore interface {
	store.LineReader
	store.ChunkReader
	store.ChunkWriter
}

// ProgressFunc reports how many of total steps of a rebuild are done.
type ProgressFunc func(done, total int)

// ChunkIndexer rebuilds the retrieval chunks of an episode from its lines.
type ChunkIndexer struct {
	store    IndexStore
	embedder embedding.Embedder
	cache    *cache.ChunkCache
	chunking parser.ChunkConfig
	opts     options
}

// NewChunkIndexer creates an indexer. A nil embedder uses the char-code
// embedding; a nil cache skips warm-up.
func NewChunkIndexer(st IndexStore, embedder embedding.Embedder, chunkCache *cache.ChunkCache, chunking parser.ChunkConfig, opts ...Option) *ChunkIndexer {
	if embedder == nil {
		embedder = embedding.NewCharCode()
	}
	return &ChunkIndexer{
		store:    st,
		embedder: embedder,
		cache:    chunkCache,
		chunking: chunking,
		opts:     newOptions(opts),
	}
}

// Rebuild replaces every chunk of the episode and warms the cache. Progress
// counts embedded chunks and the final write.
func (x *ChunkIndexer) Rebuild(ctx context.Context, episodeID string, progress ProgressFunc) (*models.IndexResult, error) {
	start := time.Now()
	result, err := x.rebuild(ctx, episodeID, progress)
	x.opts.metrics.Since(metrics.OpIndex, start)
	if err != nil {
		x.opts.metrics.RecordError(metrics.OpIndex)
		return nil, err
	}
	x.opts.logger.Info("episode indexed",
		"episode_id", episodeID,
		"lines", result.LinesIndexed,
		"chunks", result.ChunksBuilt,
		"cache_warmed", result.CacheWarmed,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (x *ChunkIndexer) rebuild(ctx context.Context, episodeID string, progress ProgressFunc) (*models.IndexResult, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	lines, err := x.store.EpisodeLines(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("episode lines: %w", err)
	}

	chunks := parser.ChunkLines(episodeID, lines, x.chunking)
	total := len(chunks) + 1
	done := 0
	progress(done, total)

	for batch := range slices.Chunk(chunks, embedBatchSize) {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
		done += len(batch)
		progress(done, total)
	}

	if err := x.store.ReplaceChunks(ctx, episodeID, chunks); err != nil {
		return nil, fmt.Errorf("replace chunks: %w", err)
	}
	progress(total, total)

	result := &models.IndexResult{
		EpisodeID:    episodeID,
		LinesIndexed: len(lines),
		ChunksBuilt:  len(chunks),
	}
	if x.cache != nil {
		if _, err := x.cache.Warm(ctx, x.store, episodeID); err != nil {
			x.opts.logger.Warn("chunk cache warm-up failed", "episode_id", episodeID, "error", err)
		} else {
			result.CacheWarmed = true
		}
	}
	return result, nil
}
