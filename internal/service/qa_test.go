package service

import (
	"context"
	"strings"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/prompts"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const episodeQuestion = "Which character lied at the harbor?"

func TestAskValidation(t *testing.T) {
	qa := newQA(seededStore(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.QARequest
	}{
		{"negative cutoff", models.QARequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: -1, Question: "why?"}},
		{"blank question", models.QARequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 10, Question: "   "}},
		{"missing episode", models.QARequest{TitleID: "t1", CurrentTimeMs: 10, Question: "why?"}},
		{"too long", models.QARequest{TitleID: "t1", EpisodeID: "e1", Question: strings.Repeat("가", MaxQuestionRunes+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qa.Ask(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestAskCasualSkipsRetrieval(t *testing.T) {
	st := newCountingStore(seededStore(t))
	qa := newQA(st, nil)

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 5000, Question: "hi, how are you",
	})
	require.NoError(t, err)

	assert.Zero(t, st.total(), "casual questions must not touch chunks or lines")
	assert.Empty(t, resp.Evidences)
	assert.NotNil(t, resp.Evidences)
	assert.Equal(t, []models.WarningCode{models.WarnQuestionIntentCasual}, warningCodes(resp.Warnings))

	cat := prompts.Default()
	assert.Equal(t, cat.CasualReply(models.LangKorean, models.StyleFriend).Conclusion, resp.Answer.Conclusion)
	require.Len(t, resp.Answer.Interpretations, 1)
	assert.Equal(t, "INTENT", resp.Answer.Interpretations[0].Label)
	assert.InDelta(t, 0.93, resp.Answer.OverallConfidence, 1e-9)
	assert.True(t, resp.Meta.SpoilerGuardApplied)
	assert.Equal(t, models.ModelRuleBased, resp.Meta.Model)
}

func TestAskCasualMenu(t *testing.T) {
	qa := newQA(seededStore(t), nil)

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", Question: "what should i eat tonight",
		Language: "en-US", ResponseStyle: models.StyleAssistant,
	})
	require.NoError(t, err)
	assert.Equal(t, prompts.Default().MenuReply(models.LangEnglish, models.StyleAssistant), resp.Answer.Conclusion)
	assert.Equal(t, []string{"Classified as casual chat and answered without episode retrieval."}, resp.Answer.Context)
}

func TestAskCasualUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{result: map[string]any{"conclusion": "Hello there!", "context": []any{"a", "b", "c"}}}
	qa := newQA(seededStore(t), gen)

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", Question: "hi, how are you",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp.Answer.Conclusion)
	assert.Equal(t, []string{"a", "b"}, resp.Answer.Context)
	assert.InDelta(t, 0.88, resp.Answer.OverallConfidence, 1e-9)
	assert.Equal(t, "fake-model", resp.Meta.Model)
}

func TestAskBeforeAnyLineDegrades(t *testing.T) {
	qa := newQA(seededStore(t), &fakeGenerator{result: map[string]any{"conclusion": "Joon lied."}})

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 100, Question: episodeQuestion,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Evidences)
	assert.Equal(t, rag.HedgedAnswer(models.StyleFriend, models.LangKorean), resp.Answer)
	assert.True(t, models.HasWarning(resp.Warnings, models.WarnEvidenceInsufficient))
	assert.InDelta(t, rag.DegradedConfidence, resp.Answer.OverallConfidence, 1e-9)
}

func TestAskRuleBasedAtCutoff(t *testing.T) {
	qa := newQA(seededStore(t), nil)

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 1500, Question: episodeQuestion,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"l1"}, evidenceLineIDs(resp.Evidences))
	for _, ev := range resp.Evidences {
		for _, l := range ev.Lines {
			assert.LessOrEqual(t, l.StartMs, int64(1500))
		}
	}
	assert.Equal(t, "핵심은 Mina의 최근 발언이 갈등의 단서로 보인다는 점이야.", resp.Answer.Conclusion)
	assert.Equal(t, []string{"[1000] Where were you last night?"}, resp.Answer.Context)
	assert.InDelta(t, 0.61, resp.Answer.OverallConfidence, 1e-9)
	assert.Empty(t, resp.Warnings)
	assert.Nil(t, resp.RelatedGraphFocus)
}

func TestAskWithGeneratorSeesOnlyPastLines(t *testing.T) {
	gen := &fakeGenerator{result: map[string]any{
		"conclusion":         "Joon lied.",
		"interpretations":    []any{"one", "two", "three"},
		"overall_confidence": 7,
	}}
	qa := newQA(seededStore(t), gen)

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2500, Question: episodeQuestion, Language: "en",
	})
	require.NoError(t, err)

	prompts := gen.prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "context:\n[1000] Mina: Where were you last night?\n[2000] Joon: At the harbor, with Captain Lee.")
	assert.NotContains(t, prompts[0], "never came")
	assert.Contains(t, prompts[0], "must be written in English")

	assert.Equal(t, "Joon lied.", resp.Answer.Conclusion)
	assert.InDelta(t, 1.0, resp.Answer.OverallConfidence, 1e-9)
	require.Len(t, resp.Answer.Interpretations, 2)
	assert.Equal(t, "B", resp.Answer.Interpretations[1].Label)
	assert.Equal(t, []string{"l1", "l2"}, evidenceLineIDs(resp.Evidences))
	assert.Equal(t, "fake-model", resp.Meta.Model)
}

func TestAskGeneratorFailureFallsBack(t *testing.T) {
	qa := newQA(seededStore(t), &fakeGenerator{err: errBoom})

	resp, err := qa.Ask(context.Background(), models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2500, Question: episodeQuestion,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer.Conclusion, "최근 발언")
	assert.Equal(t, "fake-model", resp.Meta.Model)
}

func TestAskRelatedRelation(t *testing.T) {
	qa := newQA(seededStore(t), nil)
	ctx := context.Background()

	resp, err := qa.Ask(ctx, models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2000, Question: episodeQuestion,
		Focus: &models.Focus{CharacterIDs: []string{"c2", "c1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.RelatedGraphFocus)
	assert.Equal(t, "r1", resp.RelatedGraphFocus.RelationID)
	assert.Equal(t, models.Highlight{Type: "RELATION", IDs: []string{"r1"}}, resp.RelatedGraphFocus.Highlight)

	resp, err = qa.Ask(ctx, models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 1200, Question: episodeQuestion,
		Focus: &models.Focus{CharacterIDs: []string{"c1", "c2"}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.RelatedGraphFocus, "relation starting after the cutoff must not be linked")

	resp, err = qa.Ask(ctx, models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 1200, Question: episodeQuestion,
		Focus: &models.Focus{RelationID: "r9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r9", resp.RelatedGraphFocus.RelationID)
}

func TestChatHistory(t *testing.T) {
	gen := &fakeGenerator{result: map[string]any{"conclusion": "Maybe Joon."}}
	qa := newQA(seededStore(t), gen)
	ctx := context.Background()

	req := models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2500, Question: episodeQuestion, UserID: "u1",
		Focus: &models.Focus{CharacterIDs: []string{"c1", "c2"}},
	}
	_, err := qa.Ask(ctx, req)
	require.NoError(t, err)
	_, err = qa.Ask(ctx, req)
	require.NoError(t, err)

	prompts := gen.prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "-지난 채팅 내역입니다-")
	assert.Contains(t, prompts[1], "-지난 채팅 내역입니다-\n사용자: "+episodeQuestion+"\n어시스턴트: Maybe Joon.\n-현재 질문입니다-")

	hist, err := qa.History(ctx, "t1", "e1", "u1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, hist.SessionID)
	require.Len(t, hist.Messages, 4)
	assert.Equal(t, models.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, hist.Messages[1].Role)
	assert.Equal(t, "r1", hist.Messages[1].RelatedRelationID)
	assert.Equal(t, "fake-model", hist.Messages[1].Model)

	cleared, err := qa.ClearHistory(ctx, "t1", "e1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.ChatHistoryClearResponse{DeletedMessages: 4, DeletedSessions: 1}, cleared)

	hist, err = qa.History(ctx, "t1", "e1", "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, hist.Messages)
	assert.Empty(t, hist.SessionID)
}

func TestHistoryAnonymousAndLimits(t *testing.T) {
	qa := newQA(seededStore(t), nil)
	ctx := context.Background()

	hist, err := qa.History(ctx, "t1", "e1", "", 10)
	require.NoError(t, err)
	assert.NotNil(t, hist.Messages)
	assert.Empty(t, hist.Messages)

	_, err = qa.History(ctx, "t1", "e1", "u1", MaxHistoryLimit+1)
	assert.ErrorIs(t, err, ErrInvalid)

	cleared, err := qa.ClearHistory(ctx, "t1", "e1", "")
	require.NoError(t, err)
	assert.Zero(t, cleared.DeletedMessages)
}
