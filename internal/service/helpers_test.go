package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// seededStore returns the shared fixture plus one chunk per e1 line.
func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	storetest.Seed(t, s)

	lines, err := s.EpisodeLines(ctx, "e1")
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
			Embedding: rag.CharCodeEmbedding(l.Text),
		})
	}
	require.NoError(t, s.ReplaceChunks(ctx, "e1", chunks))
	return s
}

func newQA(st store.Store, gen *fakeGenerator) *QAService {
	if gen == nil {
		return NewQAService(st, rag.NewRetriever(st), nil)
	}
	return NewQAService(st, rag.NewRetriever(st), gen)
}

// fakeGenerator returns canned output and records the prompts it saw.
type fakeGenerator struct {
	result map[string]any
	stream []string
	err    error

	mu    sync.Mutex
	users []string
}

func (f *fakeGenerator) record(user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, user)
}

func (f *fakeGenerator) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

func (f *fakeGenerator) CompleteJSON(ctx context.Context, system, user string) (map[string]any, error) {
	f.record(user)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, system, user string, onToken func(string) error) (string, error) {
	f.record(user)
	if f.err != nil {
		return "", f.err
	}
	for _, tok := range f.stream {
		if err := onToken(tok); err != nil {
			return "", err
		}
	}
	return strings.Join(f.stream, ""), nil
}

func (f *fakeGenerator) Model() string { return "fake-model" }

// countingStore counts the reads that feed retrieval.
type countingStore struct {
	store.Store

	mu    sync.Mutex
	reads map[string]int
}

func newCountingStore(inner store.Store) *countingStore {
	return &countingStore{Store: inner, reads: make(map[string]int)}
}

func (c *countingStore) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads[op]++
}

func (c *countingStore) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.reads {
		n += v
	}
	return n
}

func (c *countingStore) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	c.count("ScanChunks")
	return c.Store.ScanChunks(ctx, episodeID, cutoffMs, limit)
}

func (c *countingStore) LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	c.count("LinesByIDs")
	return c.Store.LinesByIDs(ctx, episodeID, ids, cutoffMs, limit)
}

func (c *countingStore) RecentLines(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	c.count("RecentLines")
	return c.Store.RecentLines(ctx, episodeID, cutoffMs, limit)
}

func (c *countingStore) GetLine(ctx context.Context, id string) (*models.DialogueLine, error) {
	c.count("GetLine")
	return c.Store.GetLine(ctx, id)
}

// scanFailStore fails every chunk scan.
type scanFailStore struct {
	store.Store
}

func (scanFailStore) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	return nil, errBoom
}

// failingEmbedder fails every call.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return nil, errBoom }
func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errBoom
}
func (failingEmbedder) Model() string  { return "failing" }
func (failingEmbedder) Dimension() int { return 4 }

func warningCodes(ws []models.Warning) []models.WarningCode {
	out := make([]models.WarningCode, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

func evidenceLineIDs(evs []models.Evidence) []string {
	var out []string
	for _, ev := range evs {
		for _, l := range ev.Lines {
			out = append(out, l.LineID)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
