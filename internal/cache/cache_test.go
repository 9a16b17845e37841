package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisFromClient(client)
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedis(t)

	_, ok, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, r.Delete(ctx, "k"))
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUExpiresPerEntry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(8, time.Hour)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("b"), time.Minute))

	now = now.Add(5 * time.Second)

	_, ok, _ := c.Get(ctx, "short")
	assert.False(t, ok)
	val, ok, _ := c.Get(ctx, "long")
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), val)
	assert.Equal(t, 1, c.Len())
}

func TestChunkKey(t *testing.T) {
	assert.Equal(t, "netplus:episode:e1:chunks", ChunkKey("e1"))
}

func TestChunkCacheTTLFloor(t *testing.T) {
	c := NewChunkCache(NewLRU(4, time.Hour), 5*time.Second, nil)
	assert.Equal(t, MinChunkTTL, c.TTL())
}

func TestChunkCacheWarmAndGet(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedis(t)
	c := NewChunkCache(r, 10*time.Minute, nil)

	s := memstore.New()
	chunks := []models.Chunk{
		{ID: "c1", EpisodeID: "e1", StartMs: 0, EndMs: 900, Text: "a b", LineIDs: []string{"l1"}, Embedding: []float32{0.1, 0.2, 0.3, 0.4}},
		{ID: "c2", EpisodeID: "e1", StartMs: 1000, EndMs: 1900, Text: "c d", LineIDs: []string{"l2"}},
	}
	require.NoError(t, s.ReplaceChunks(ctx, "e1", chunks))

	n, err := c.Warm(ctx, s, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists(ChunkKey("e1")))
	assert.InDelta(t, 600, mr.TTL(ChunkKey("e1")).Seconds(), 1)

	got, ok := c.Get(ctx, "e1")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, got[0].Embedding)

	require.NoError(t, c.Invalidate(ctx, "e1"))
	_, ok = c.Get(ctx, "e1")
	assert.False(t, ok)
}

func TestChunkCacheTreatsFailuresAsMiss(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedis(t)
	c := NewChunkCache(r, time.Minute, nil)

	require.NoError(t, mr.Set(ChunkKey("bad"), "not json"))
	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)

	require.NoError(t, mr.Set(ChunkKey("empty"), "[]"))
	_, ok = c.Get(ctx, "empty")
	assert.False(t, ok)

	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = dead.Close() })
	broken := NewChunkCache(NewRedisFromClient(dead), time.Minute, nil)
	_, ok = broken.Get(ctx, "e1")
	assert.False(t, ok)
}

func TestNilChunkCache(t *testing.T) {
	var c *ChunkCache
	_, ok := c.Get(context.Background(), "e1")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background(), "e1"))
	n, err := c.Warm(context.Background(), memstore.New(), "e1")
	assert.NoError(t, err)
	assert.Zero(t, n)
}
