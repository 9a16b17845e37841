// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

func ptr[T any](v T) *T { return &v }

// Seed writes the fixture the contract runs against.
func Seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertTitle(ctx, models.Title{ID: "t1", Name: "Harbor Lights"}))
	require.NoError(t, s.UpsertEpisode(ctx, models.Episode{ID: "e1", TitleID: "t1", Season: 1, Number: 1}))
	require.NoError(t, s.UpsertEpisode(ctx, models.Episode{ID: "e2", TitleID: "t1", Season: 1, Number: 2}))

	require.NoError(t, s.InsertLines(ctx, []models.DialogueLine{
		{ID: "l1", EpisodeID: "e1", StartMs: 1000, EndMs: 1900, SpeakerText: "Mina", Text: "Where were you last night?"},
		{ID: "l2", EpisodeID: "e1", StartMs: 2000, EndMs: 2900, SpeakerText: "Joon", Text: "At the harbor, with Captain Lee."},
		{ID: "l3", EpisodeID: "e1", StartMs: 3000, EndMs: 3900, SpeakerText: "Mina", Text: "The captain says you never came."},
		{ID: "l4", EpisodeID: "e2", StartMs: 500, EndMs: 900, SpeakerText: "Lee", Text: "Nobody leaves the harbor tonight."},
	}))

	require.NoError(t, s.UpsertCharacter(ctx, models.Character{
		ID: "c1", TitleID: "t1", CanonicalName: "Mina",
		Aliases: []models.Alias{{Text: "Detective Han", Confidence: 0.6}},
	}))
	require.NoError(t, s.UpsertCharacter(ctx, models.Character{
		ID: "c2", TitleID: "t1", CanonicalName: "Joon",
		Aliases: []models.Alias{{Text: "the boy", Confidence: 0.4}},
	}))
	require.NoError(t, s.UpsertCharacter(ctx, models.Character{
		ID: "c3", TitleID: "t1", CanonicalName: "Captain Lee",
		Aliases: []models.Alias{{Text: "Captain", Confidence: 0.9}, {Text: "the boy", Confidence: 0.7}},
	}))

	require.NoError(t, s.UpsertRelation(ctx, models.Relation{
		ID: "r1", TitleID: "t1", FromCharacterID: "c1", ToCharacterID: "c2",
		Kind: models.RelationMistrust, Confidence: 0.7, ValidFromMs: 1500,
	}))
	require.NoError(t, s.UpsertRelation(ctx, models.Relation{
		ID: "r2", TitleID: "t1", FromCharacterID: "c2", ToCharacterID: "c3",
		Kind: models.RelationBossSubordinate, Confidence: 0.8, ValidFromMs: 0, ValidToMs: ptr(int64(2500)),
	}))
	require.NoError(t, s.UpsertRelation(ctx, models.Relation{
		ID: "r3", TitleID: "t1", FromCharacterID: "c1", ToCharacterID: "c3",
		Kind: models.RelationAlly, IsHypothesis: true, Confidence: 0.4, ValidFromMs: 1000,
	}))

	require.NoError(t, s.InsertEvidenceRecord(ctx, models.EvidenceRecord{
		ID: "ev1", RelationID: "r1", EpisodeID: "e1", RepresentativeTimeMs: 1000, Summary: "question", LineIDs: []string{"l1", "l2"},
	}))
	require.NoError(t, s.InsertEvidenceRecord(ctx, models.EvidenceRecord{
		ID: "ev2", RelationID: "r1", EpisodeID: "e1", RepresentativeTimeMs: 3000, Summary: "contradiction", LineIDs: []string{"l3"},
	}))
}

func lineIDs(lines []models.DialogueLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ID)
	}
	return out
}

func relationIDs(rels []models.Relation) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.ID)
	}
	return out
}

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("lines", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)

		l, err := s.GetLine(ctx, "l2")
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.Equal(t, "Joon", l.SpeakerText)
		assert.Equal(t, int64(2000), l.StartMs)

		missing, err := s.GetLine(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		got, err := s.LinesByIDs(ctx, "e1", []string{"l1", "l2", "l3", "l4"}, 2500, 6)
		require.NoError(t, err)
		assert.Equal(t, []string{"l2", "l1"}, lineIDs(got))

		got, err = s.LinesByIDs(ctx, "e1", []string{"l1", "l2", "l3"}, 5000, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"l3"}, lineIDs(got))

		recent, err := s.RecentLines(ctx, "e1", 3000, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"l3", "l2"}, lineIDs(recent))

		none, err := s.RecentLines(ctx, "e1", 100, 6)
		require.NoError(t, err)
		assert.Empty(t, none)

		mentions, err := s.LinesMentioning(ctx, "e1", 5000, "CAPTAIN", 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"l3", "l2"}, lineIDs(mentions))

		all, err := s.EpisodeLines(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, []string{"l1", "l2", "l3"}, lineIDs(all))
	})

	t.Run("chunks", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)

		chunks := []models.Chunk{
			{ID: "k1", EpisodeID: "e1", StartMs: 1000, EndMs: 2900, Text: "a b", LineIDs: []string{"l1", "l2"}, Embedding: []float32{0.1, 0.2, 0.3, 0.4}},
			{ID: "k2", EpisodeID: "e1", StartMs: 3000, EndMs: 3900, Text: "c", LineIDs: []string{"l3"}, Embedding: []float32{0.4, 0.3, 0.2, 0.1}},
		}
		require.NoError(t, s.ReplaceChunks(ctx, "e1", chunks))

		scanned, err := s.ScanChunks(ctx, "e1", 2999, 120)
		require.NoError(t, err)
		require.Len(t, scanned, 1)
		assert.Equal(t, "k1", scanned[0].ID)
		assert.Equal(t, []string{"l1", "l2"}, scanned[0].LineIDs)
		assert.Len(t, scanned[0].Embedding, 4)

		scanned, err = s.ScanChunks(ctx, "e1", 9999, 120)
		require.NoError(t, err)
		require.Len(t, scanned, 2)
		assert.Equal(t, "k2", scanned[0].ID)

		require.NoError(t, s.ReplaceChunks(ctx, "e1", chunks[:1]))
		all, err := s.EpisodeChunks(ctx, "e1")
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "k1", all[0].ID)
	})

	t.Run("characters", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)

		c, err := s.GetCharacter(ctx, "c3")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "Captain Lee", c.CanonicalName)
		assert.Len(t, c.Aliases, 2)

		missing, err := s.GetCharacter(ctx, "zz")
		require.NoError(t, err)
		assert.Nil(t, missing)

		byIDs, err := s.CharactersByIDs(ctx, []string{"c2", "c1", "zz"})
		require.NoError(t, err)
		assert.Len(t, byIDs, 2)

		byTitle, err := s.CharactersByTitle(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, byTitle, 3)

		matches, err := s.CharactersByAlias(ctx, "t1", "THE BOY", 5)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c3", matches[0].Character.ID)
		assert.Equal(t, "c2", matches[1].Character.ID)
	})

	t.Run("relations", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)

		active, err := s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 2000, IncludeHypothesis: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, relationIDs(active))

		active, err = s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 2501, IncludeHypothesis: false})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1"}, relationIDs(active))

		active, err = s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 1200, IncludeHypothesis: true, FocusCharacterID: "c3"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"r2", "r3"}, relationIDs(active))

		active, err = s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 2000, IncludeHypothesis: true, Kinds: []models.RelationKind{models.RelationAlly}})
		require.NoError(t, err)
		assert.Equal(t, []string{"r3"}, relationIDs(active))

		rel, err := s.GetRelation(ctx, "r2")
		require.NoError(t, err)
		require.NotNil(t, rel)
		require.NotNil(t, rel.ValidToMs)
		assert.Equal(t, int64(2500), *rel.ValidToMs)

		between, err := s.RelationBetween(ctx, "t1", "c1", "c2", 1500)
		require.NoError(t, err)
		require.NotNil(t, between)
		assert.Equal(t, "r1", between.ID)

		between, err = s.RelationBetween(ctx, "t1", "c1", "c2", 1499)
		require.NoError(t, err)
		assert.Nil(t, between)
	})

	t.Run("evidence", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)

		recs, err := s.RelationEvidence(ctx, "r1", "e1", 5000, 2)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "ev2", recs[0].ID)
		assert.Equal(t, []string{"l1", "l2"}, recs[1].LineIDs)

		recs, err = s.RelationEvidence(ctx, "r1", "e1", 2000, 2)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "ev1", recs[0].ID)

		latest, err := s.LatestRelationEvidence(ctx, "r1", 5000)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "ev2", latest.ID)

		latest, err = s.LatestRelationEvidence(ctx, "r1", 10)
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("chat", func(t *testing.T) {
		s := newStore(t)

		sess, err := s.GetOrCreateSession(ctx, "t1", "e1", "u1", 1000)
		require.NoError(t, err)
		require.NotEmpty(t, sess.ID)

		again, err := s.GetOrCreateSession(ctx, "t1", "e1", "u1", 2000)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, again.ID)
		assert.Equal(t, int64(2000), again.CurrentTimeMs)

		for _, content := range []string{"q1", "a1", "q2", "a2"} {
			role := models.RoleUser
			if content[0] == 'a' {
				role = models.RoleAssistant
			}
			_, err := s.AppendMessage(ctx, models.ChatMessage{SessionID: sess.ID, Role: role, Content: content, CurrentTimeMs: 2000})
			require.NoError(t, err)
		}

		recent, err := s.RecentMessages(ctx, sess.ID, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "a2", recent[0].Content)
		assert.Equal(t, "a1", recent[2].Content)

		listed, err := s.ListMessages(ctx, sess.ID, 100)
		require.NoError(t, err)
		require.Len(t, listed, 4)
		assert.Equal(t, "q1", listed[0].Content)

		found, err := s.FindSession(ctx, "t1", "e1", "u1")
		require.NoError(t, err)
		require.NotNil(t, found)

		msgs, sessions, err := s.DeleteHistory(ctx, "t1", "e1", "u1")
		require.NoError(t, err)
		assert.Equal(t, 4, msgs)
		assert.Equal(t, 1, sessions)

		found, err = s.FindSession(ctx, "t1", "e1", "u1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
