package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// seededStore returns the shared fixture plus one chunk per e1 line.
func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	storetest.Seed(t, s)

	lines, err := s.EpisodeLines(context.Background(), "e1")
	require.NoError(t, err)
	chunks := make([]models.Chunk, 0, len(lines))
	for _, l := range lines {
		chunks = append(chunks, models.Chunk{
			ID:        "ch-" + l.ID,
			EpisodeID: "e1",
			StartMs:   l.StartMs,
			EndMs:     l.EndMs,
			Text:      l.Text,
			LineIDs:   []string{l.ID},
			Embedding: CharCodeEmbedding(l.Text),
		})
	}
	require.NoError(t, s.ReplaceChunks(context.Background(), "e1", chunks))
	return s
}

// countingChunks records how often the scan path is used.
type countingChunks struct {
	store.ChunkReader
	scans int
	err   error
}

func (c *countingChunks) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	c.scans++
	if c.err != nil {
		return nil, c.err
	}
	return c.ChunkReader.ScanChunks(ctx, episodeID, cutoffMs, limit)
}

// fakeVector returns a fixed list, ignoring the cutoff, or an error.
type fakeVector struct {
	chunks []models.Chunk
	err    error
	limit  int
}

func (f *fakeVector) SearchChunks(ctx context.Context, episodeID string, cutoffMs int64, emb []float32, limit int) ([]models.Chunk, error) {
	f.limit = limit
	return f.chunks, f.err
}

// failingLines fails every read.
type failingLines struct {
	store.LineReader
}

func (failingLines) GetLine(ctx context.Context, id string) (*models.DialogueLine, error) {
	return nil, errBoom
}

func (failingLines) LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	return nil, errBoom
}

func chunkIDs(scored []ScoredChunk) []string {
	out := make([]string, 0, len(scored))
	for _, c := range scored {
		out = append(out, c.ID)
	}
	return out
}

func ids(lines []models.DialogueLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ID)
	}
	return out
}
