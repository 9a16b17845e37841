package service

import (
	"context"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeIDs(edges []models.GraphEdge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.ID)
	}
	return out
}

func nodeIDs(nodes []models.GraphNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestGraphAtCutoff(t *testing.T) {
	svc := NewGraphService(seededStore(t))

	resp, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2", "r3"}, edgeIDs(resp.Edges))
	assert.Equal(t, []string{"c1", "c2", "c3"}, nodeIDs(resp.Nodes))
	assert.Equal(t, []string{"l1", "l2"}, evidenceLineIDs(resp.Edges[0].Evidences))
	assert.Empty(t, resp.Edges[1].Evidences)
	assert.True(t, resp.Meta.SpoilerGuardApplied)
	assert.Empty(t, resp.Meta.Model)

	assert.Equal(t, []models.Warning{
		{Code: models.WarnEvidenceInsufficient, Message: "관계 r2에 대한 근거가 부족합니다."},
		{Code: models.WarnEvidenceInsufficient, Message: "관계 r3에 대한 근거가 부족합니다."},
	}, resp.Warnings)
}

func TestGraphTrimsEvidenceToCutoff(t *testing.T) {
	svc := NewGraphService(seededStore(t))

	resp, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 1700})
	require.NoError(t, err)
	require.Equal(t, "r1", resp.Edges[0].ID)
	assert.Equal(t, []string{"l1"}, evidenceLineIDs(resp.Edges[0].Evidences))
	assert.Equal(t, int64(1000), resp.Edges[0].Evidences[0].RepresentativeTimeMs)
	assert.True(t, models.HasWarning(resp.Warnings, models.WarnTimeGuardViolation))
}

func TestGraphValidityWindow(t *testing.T) {
	svc := NewGraphService(seededStore(t))
	ctx := context.Background()

	early, err := svc.Graph(ctx, models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 1200})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, edgeIDs(early.Edges), "r1 starts at 1500")

	late, err := svc.Graph(ctx, models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3000})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, edgeIDs(late.Edges), "r2 ended at 2500")
	assert.Equal(t, []string{"c1", "c2", "c3"}, nodeIDs(late.Nodes))
}

func TestGraphFilters(t *testing.T) {
	svc := NewGraphService(seededStore(t))
	ctx := context.Background()

	resp, err := svc.Graph(ctx, models.GraphRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000, IncludeHypothesis: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, edgeIDs(resp.Edges))

	resp, err = svc.Graph(ctx, models.GraphRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000, FocusCharacterID: "c3",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, edgeIDs(resp.Edges))

	resp, err = svc.Graph(ctx, models.GraphRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000, RelationKinds: []models.RelationKind{models.RelationMistrust},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, edgeIDs(resp.Edges))
	assert.Equal(t, []string{"c1", "c2"}, nodeIDs(resp.Nodes))
}

func TestGraphLatestRelationPerPairWins(t *testing.T) {
	st := seededStore(t)
	require.NoError(t, st.UpsertRelation(context.Background(), models.Relation{
		ID: "r4", TitleID: "t1", FromCharacterID: "c1", ToCharacterID: "c2",
		Kind: models.RelationAlly, Confidence: 0.5, ValidFromMs: 2500,
	}))
	svc := NewGraphService(st)

	resp, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3000})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r4"}, edgeIDs(resp.Edges))
}

func TestGraphDropsEdgesWithMissingEndpoint(t *testing.T) {
	st := seededStore(t)
	require.NoError(t, st.UpsertRelation(context.Background(), models.Relation{
		ID: "r5", TitleID: "t1", FromCharacterID: "c1", ToCharacterID: "ghost",
		Kind: models.RelationFamily, Confidence: 0.9, ValidFromMs: 0,
	}))
	svc := NewGraphService(st)

	resp, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000})
	require.NoError(t, err)
	assert.NotContains(t, edgeIDs(resp.Edges), "r5")
	assert.NotContains(t, nodeIDs(resp.Nodes), "ghost")
	for _, w := range resp.Warnings {
		assert.NotContains(t, w.Message, "r5")
	}
}

func TestGraphValidation(t *testing.T) {
	svc := NewGraphService(seededStore(t))

	_, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: -1})
	assert.ErrorIs(t, err, ErrInvalid)

	resp, err := svc.Graph(context.Background(), models.GraphRequest{TitleID: "nope", EpisodeID: "e1", CurrentTimeMs: 2000})
	require.NoError(t, err)
	assert.NotNil(t, resp.Edges)
	assert.NotNil(t, resp.Nodes)
	assert.NotNil(t, resp.Warnings)
}

func TestRelationDetail(t *testing.T) {
	svc := NewGraphService(seededStore(t))
	ctx := context.Background()

	detail, err := svc.Relation(ctx, "r1", 2000)
	require.NoError(t, err)
	assert.Equal(t, "r1", detail.Relation.ID)
	assert.Equal(t, models.RelationMistrust, detail.Relation.RelationType)
	assert.Equal(t, []string{"l1", "l2"}, evidenceLineIDs(detail.Relation.Evidences))
	assert.Empty(t, detail.Warnings)

	detail, err = svc.Relation(ctx, "r1", 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"l3", "l1", "l2"}, evidenceLineIDs(detail.Relation.Evidences))

	detail, err = svc.Relation(ctx, "r3", 2000)
	require.NoError(t, err)
	assert.Empty(t, detail.Relation.Evidences)
	assert.Equal(t, []models.Warning{{Code: models.WarnEvidenceInsufficient, Message: "관계 근거를 찾지 못했습니다."}}, detail.Warnings)
}

func TestRelationDetailNotVisible(t *testing.T) {
	svc := NewGraphService(seededStore(t))
	ctx := context.Background()

	_, err := svc.Relation(ctx, "r1", 1000)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Relation(ctx, "r2", 2600)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Relation(ctx, "nope", 2000)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Relation(ctx, "", 2000)
	assert.ErrorIs(t, err, ErrInvalid)
}
