package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/prompts"
	"github.com/stretchr/testify/assert"
)

func TestToConfidence(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{0.4, 0.4},
		{2, 1},
		{-3.5, 0},
		{" 0.25 ", 0.25},
		{"high", 0.5},
		{json.Number("0.8"), 0.8},
		{math.NaN(), 0.5},
		{nil, 0.5},
		{map[string]any{"x": 1}, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, toConfidence(tt.in, 0.5), 1e-9, "%v", tt.in)
	}
}

func TestCoerceAnswerDefaults(t *testing.T) {
	cat := prompts.Default()

	got := coerceAnswer(map[string]any{}, cat)
	assert.Equal(t, models.Answer{
		Conclusion:        cat.Answer.DefaultConclusion,
		Context:           []string{cat.Answer.DefaultContext},
		Interpretations:   []models.Interpretation{{Label: "A", Text: cat.Answer.DefaultInterpretation, Confidence: 0.3}},
		OverallConfidence: 0.5,
	}, got)
}

func TestCoerceAnswerMixedShapes(t *testing.T) {
	cat := prompts.Default()

	got := coerceAnswer(map[string]any{
		"conclusion": 42,
		"context":    "single line",
		"interpretations": []any{
			map[string]any{"text": "first", "confidence": "0.9"},
			map[string]any{"label": "B", "confidence": 5},
			"third is dropped",
		},
		"overall_confidence": "0.7",
	}, cat)

	assert.Equal(t, "42", got.Conclusion)
	assert.Equal(t, []string{"single line"}, got.Context)
	assert.Equal(t, []models.Interpretation{
		{Label: "A", Text: "first", Confidence: 0.9},
		{Label: "B", Text: cat.Answer.DefaultInterpretation, Confidence: 1},
	}, got.Interpretations)
	assert.InDelta(t, 0.7, got.OverallConfidence, 1e-9)
}

func TestCoerceCasual(t *testing.T) {
	cat := prompts.Default()

	_, ok := coerceCasual(map[string]any{"conclusion": "  "}, models.LangKorean, cat)
	assert.False(t, ok)

	got, ok := coerceCasual(map[string]any{"conclusion": "hey"}, models.LangEnglish, cat)
	assert.True(t, ok)
	assert.Equal(t, []string{cat.CasualSkippedContext(models.LangEnglish)}, got.Context)
	assert.Equal(t, "INTENT", got.Interpretations[0].Label)
	assert.InDelta(t, 0.88, got.OverallConfidence, 1e-9)
}

func TestCoerceRecap(t *testing.T) {
	got := coerceRecap(map[string]any{
		"text":         " recap ",
		"bullets":      []string{"a", "b", "c", "d", "e"},
		"watch_points": nil,
	})
	assert.Equal(t, "recap", got.text)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got.bullets)
	assert.Empty(t, got.watchPoints)
}
