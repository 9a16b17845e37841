package rag

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/cache"
	"github.com/raphaelgruber/spoilerguard/internal/embedding"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// Retrieval limits.
const (
	DefaultTopK      = 8
	MaxCandidates    = 120
	minVectorFetch   = 40
	vectorFetchRatio = 8
)

// Backend names reported in ScoredChunk.Source.
const (
	SourceVector = "vector"
	SourceCache  = "cache"
	SourceScan   = "scan"
)

// Retriever finds the chunks of an episode most relevant to a query among
// those that start at or before the cutoff. It tries the vector index, then
// the warm cache, then a bounded scan.
type Retriever struct {
	chunks   store.ChunkReader
	vector   store.VectorSearcher
	cache    *cache.ChunkCache
	embedder embedding.Embedder
	metrics  *metrics.Collector
	logger   *slog.Logger
	topK     int
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithVectorSearch enables the similarity path.
func WithVectorSearch(v store.VectorSearcher) RetrieverOption {
	return func(r *Retriever) { r.vector = v }
}

// WithChunkCache enables the warm cache path.
func WithChunkCache(c *cache.ChunkCache) RetrieverOption {
	return func(r *Retriever) { r.cache = c }
}

// WithEmbedder sets the query embedder. It must match the embedder used
// when chunks were indexed.
func WithEmbedder(e embedding.Embedder) RetrieverOption {
	return func(r *Retriever) { r.embedder = e }
}

func WithMetrics(c *metrics.Collector) RetrieverOption {
	return func(r *Retriever) { r.metrics = c }
}

func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithTopK sets the default result size.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// NewRetriever creates a retriever scanning chunks from src.
func NewRetriever(src store.ChunkReader, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		chunks:   src,
		embedder: embedding.NewCharCode(),
		logger:   slog.Default(),
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TopK returns the default result size.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns up to limit chunks ranked by hybrid score. A limit of 0
// uses the configured top k. Only a failing scan is reported as an error;
// vector and cache failures fall through to the next backend.
func (r *Retriever) Retrieve(ctx context.Context, episodeID string, cutoffMs int64, query string, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = r.topK
	}
	queryEmbedding := r.embedQuery(ctx, query)

	candidates, source := r.vectorCandidates(ctx, episodeID, cutoffMs, queryEmbedding, limit)
	if len(candidates) == 0 {
		var ok bool
		candidates, ok = r.cacheCandidates(ctx, episodeID, cutoffMs)
		source = SourceCache
		if !ok {
			var err error
			candidates, err = r.scanCandidates(ctx, episodeID, cutoffMs)
			if err != nil {
				return nil, err
			}
			source = SourceScan
		}
	}

	candidates = visibleChunks(candidates, cutoffMs)
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := Rerank(query, queryEmbedding, candidates, source, limit)
	r.logger.Debug("chunks retrieved",
		"episode_id", episodeID,
		"current_time_ms", cutoffMs,
		"backend", source,
		"candidates", len(candidates),
		"returned", len(ranked),
	)
	return ranked, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) []float32 {
	if r.embedder == nil {
		return CharCodeEmbedding(query)
	}
	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		r.metrics.RecordError(metrics.OpEmbedding)
		r.logger.Warn("query embedding failed, using char-code vector", "model", r.embedder.Model(), "error", err)
		return CharCodeEmbedding(query)
	}
	r.metrics.Since(metrics.OpEmbedding, start)
	return vec
}

func (r *Retriever) vectorCandidates(ctx context.Context, episodeID string, cutoffMs int64, queryEmbedding []float32, limit int) ([]models.Chunk, string) {
	if r.vector == nil {
		return nil, ""
	}
	start := time.Now()
	chunks, err := r.vector.SearchChunks(ctx, episodeID, cutoffMs, queryEmbedding, max(minVectorFetch, limit*vectorFetchRatio))
	if err != nil {
		r.metrics.RecordError(metrics.OpRetrievalVector)
		r.logger.Warn("vector search failed, falling back", "episode_id", episodeID, "error", err)
		return nil, ""
	}
	r.metrics.Since(metrics.OpRetrievalVector, start)
	if len(chunks) == 0 {
		r.logger.Debug("vector search empty, falling back", "episode_id", episodeID)
	}
	return chunks, SourceVector
}

// cacheCandidates returns the cached chunks at or before the cutoff, newest
// first. ok is true whenever the cache held a list for the episode, even if
// every cached chunk is past the cutoff.
func (r *Retriever) cacheCandidates(ctx context.Context, episodeID string, cutoffMs int64) ([]models.Chunk, bool) {
	if r.cache == nil {
		return nil, false
	}
	start := time.Now()
	cached, ok := r.cache.Get(ctx, episodeID)
	if !ok {
		r.logger.Debug("chunk cache miss", "episode_id", episodeID)
		return nil, false
	}
	visible := visibleChunks(cached, cutoffMs)
	slices.SortStableFunc(visible, func(a, b models.Chunk) int { return cmp.Compare(b.StartMs, a.StartMs) })
	if len(visible) > MaxCandidates {
		visible = visible[:MaxCandidates]
	}
	r.metrics.Since(metrics.OpRetrievalCache, start)
	r.logger.Debug("chunk cache hit", "episode_id", episodeID, "cached", len(cached), "visible", len(visible))
	return visible, true
}

func (r *Retriever) scanCandidates(ctx context.Context, episodeID string, cutoffMs int64) ([]models.Chunk, error) {
	start := time.Now()
	chunks, err := r.chunks.ScanChunks(ctx, episodeID, cutoffMs, MaxCandidates)
	if err != nil {
		r.metrics.RecordError(metrics.OpRetrievalScan)
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	r.metrics.Since(metrics.OpRetrievalScan, start)
	return chunks, nil
}

// visibleChunks drops chunks that start after the cutoff.
func visibleChunks(chunks []models.Chunk, cutoffMs int64) []models.Chunk {
	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.StartMs <= cutoffMs {
			out = append(out, c)
		}
	}
	return out
}
