package rag

import (
	"context"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(lineIDs ...string) []ScoredChunk {
	return []ScoredChunk{{Chunk: models.Chunk{ID: "c", LineIDs: lineIDs}}}
}

func TestResolveReturnsAscendingWithinCutoff(t *testing.T) {
	r := NewResolver(seededStore(t))

	lines, err := r.Resolve(context.Background(), "e1", 2500, scored("l3", "l1", "l2", "l4"), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, ids(lines))
}

func TestResolveKeepsNewestWhenCapped(t *testing.T) {
	r := NewResolver(seededStore(t))

	lines, err := r.Resolve(context.Background(), "e1", 5000, scored("l1", "l2", "l3"), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l3"}, ids(lines))
}

func TestResolveOrRecent(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(seededStore(t))

	// chunk lines are all in the future, so the recent fallback applies
	lines, err := r.ResolveOrRecent(ctx, "e1", 2500, scored("l3"), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, ids(lines))

	lines, err = r.ResolveOrRecent(ctx, "e1", 100, nil, 6)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestResolveStorageError(t *testing.T) {
	_, err := NewResolver(failingLines{}).Resolve(context.Background(), "e1", 10, scored("l1"), 6)
	assert.ErrorIs(t, err, errBoom)
}

func TestRerankLines(t *testing.T) {
	lines := []models.DialogueLine{
		{ID: "a", StartMs: 1, Text: "the harbor"},
		{ID: "b", StartMs: 2, Text: "nothing"},
		{ID: "c", StartMs: 3, Text: "harbor lights"},
	}
	got := RerankLines("harbor", lines)
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))
	assert.Equal(t, "a", lines[0].ID)
}
