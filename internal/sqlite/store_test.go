package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openMemory(t) })
}

func TestPingAfterClose(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, MemoryPath)
	require.NoError(t, err)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Error(t, s.Ping(ctx))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spoilerguard.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	storetest.Seed(t, s)
	require.NoError(t, s.Close(ctx))

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)

	line, err := s.GetLine(ctx, "l2")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "At the harbor, with Captain Lee.", line.Text)
	assert.Equal(t, path, s.Path())
}

func TestLinesMentioningFoldsUnicode(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.InsertLines(ctx, []models.DialogueLine{
		{ID: "a", EpisodeID: "e1", StartMs: 100, EndMs: 200, Text: "ÉCOLE starts now"},
		{ID: "b", EpisodeID: "e1", StartMs: 300, EndMs: 400, Text: "nothing here"},
		{ID: "c", EpisodeID: "e1", StartMs: 900, EndMs: 950, Text: "école again"},
	}))

	got, err := s.LinesMentioning(ctx, "e1", 500, "école", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestUpsertCharacterReplacesAliases(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	storetest.Seed(t, s)

	c3, err := s.GetCharacter(ctx, "c3")
	require.NoError(t, err)
	c3.Aliases = []models.Alias{{Text: "Old Man", Confidence: 0.5}}
	require.NoError(t, s.UpsertCharacter(ctx, *c3))

	matches, err := s.CharactersByAlias(ctx, "t1", "the boy", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c2", matches[0].Character.ID)

	matches, err = s.CharactersByAlias(ctx, "t1", "OLD MAN", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"Old Man"}, matches[0].Character.AliasTexts())
}

func TestUpsertRelationKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	storetest.Seed(t, s)

	r1, err := s.GetRelation(ctx, "r1")
	require.NoError(t, err)
	r1.Confidence = 0.95
	require.NoError(t, s.UpsertRelation(ctx, *r1))

	active, err := s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 2000, IncludeHypothesis: true})
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "r1", active[0].ID)
	assert.InDelta(t, 0.95, active[0].Confidence, 1e-9)
	assert.Nil(t, active[0].ValidToMs)
}

func TestChunksWithoutEmbedding(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.ReplaceChunks(ctx, "e1", []models.Chunk{{EpisodeID: "e1", StartMs: 5, EndMs: 9, Text: "x"}}))
	chunks, err := s.EpisodeChunks(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].ID)
	assert.Empty(t, chunks[0].Embedding)
	assert.Empty(t, chunks[0].LineIDs)
}
