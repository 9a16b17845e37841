package rag

import (
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAssertive(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"범인은 민아다.", true},
		{"민아가 거짓말을 했어요.", true},
		{"Mina lied.", true},
		{"Mina lied!", true},
		{"민아가 범인일 가능성이 있다.", false},
		{"아마 민아가 범인이다.", false},
		{"Mina might have lied.", false},
		{"It is hard to say.", false},
		{"민아가 범인일까", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAssertive(tt.in))
		})
	}
}

func TestEnforcePassesThroughWithEvidence(t *testing.T) {
	answer := models.Answer{Conclusion: "범인은 민아다.", OverallConfidence: 0.9}
	got, warnings := Enforce(answer, []models.Evidence{{ID: "e"}}, models.StyleFriend, models.LangKorean)
	assert.Equal(t, answer, got)
	assert.Empty(t, warnings)
}

func TestEnforceDegradesWithoutEvidence(t *testing.T) {
	answer := models.Answer{Conclusion: "범인은 민아다.", OverallConfidence: 0.9}
	got, warnings := Enforce(answer, nil, models.StyleFriend, models.LangKorean)

	assert.Equal(t, "현재 시점 기준으로는 확실한 근거가 부족해서 단정하긴 어려워.", got.Conclusion)
	assert.InDelta(t, 0.3, got.OverallConfidence, 1e-9)
	require.Len(t, got.Interpretations, 2)
	assert.InDelta(t, 0.35, got.Interpretations[0].Confidence, 1e-9)
	assert.InDelta(t, 0.28, got.Interpretations[1].Confidence, 1e-9)

	assert.Equal(t, []models.WarningCode{
		models.WarnAssertiveWithoutEvidence,
		models.WarnEvidenceInsufficient,
	}, warningCodes(warnings))
}

func TestEnforceHedgedAnswerOnlyWarnsInsufficient(t *testing.T) {
	answer := models.Answer{Conclusion: "아마 민아가 범인일 거야"}
	_, warnings := Enforce(answer, nil, models.StyleCritic, models.LangKorean)
	assert.Equal(t, []models.WarningCode{models.WarnEvidenceInsufficient}, warningCodes(warnings))
}

func TestEnforceIsDeterministic(t *testing.T) {
	for _, style := range []models.ResponseStyle{models.StyleFriend, models.StyleAssistant, models.StyleCritic} {
		for _, lang := range []models.Language{models.LangKorean, models.LangEnglish} {
			a1, w1 := Enforce(models.Answer{Conclusion: "x"}, nil, style, lang)
			a2, w2 := Enforce(models.Answer{Conclusion: "totally different."}, nil, style, lang)
			assert.Equal(t, a1, a2, "%s/%s", style, lang)
			assert.Equal(t, HedgedAnswer(style, lang), a1)

			// the template itself is hedged, so enforcing again adds no assertive warning
			a3, w3 := Enforce(a1, nil, style, lang)
			assert.Equal(t, a1, a3)
			assert.Equal(t, w1, w3)
			assert.Len(t, w2, 2)
			assert.False(t, IsAssertive(a1.Conclusion), "%s/%s", style, lang)
		}
	}
}

func TestHedgedAnswerFallsBackToKorean(t *testing.T) {
	assert.Equal(t, HedgedAnswer(models.StyleFriend, models.LangKorean), HedgedAnswer(models.StyleFriend, "ja"))
	assert.Equal(t, HedgedAnswer(models.StyleFriend, models.LangEnglish), HedgedAnswer("PIRATE", models.LangEnglish))
}

func TestDedupeWarnings(t *testing.T) {
	w := []models.Warning{
		{Code: models.WarnLineNotFound, Message: "a"},
		{Code: models.WarnLineNotFound, Message: "a"},
		{Code: models.WarnLineNotFound, Message: "b"},
		{Code: models.WarnEvidenceInsufficient, Message: "a"},
	}
	assert.Len(t, DedupeWarnings(w), 3)
	assert.NotNil(t, DedupeWarnings(nil))
}
