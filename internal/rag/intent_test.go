package rag

import (
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		question   string
		intent     models.Intent
		confidence float64
		reason     string
	}{
		{"", models.IntentCasual, 0.9, "empty_question"},
		{"   ?! ", models.IntentCasual, 0.9, "empty_question"},
		{"hi, how are you", models.IntentCasual, 0.76, "casual_prefix,casual_keywords=1"},
		{"안녕", models.IntentCasual, 0.88, "casual_prefix,casual_keywords=1,short_casual_utterance"},
		{"오늘 저녁 뭐 먹을까?", models.IntentCasual, 0.88, "casual_pattern,short_question_without_episode_signals"},
		{"what should i eat tonight", models.IntentCasual, 0.8, "casual_pattern"},
		{"what happened?", models.IntentEpisode, 0.2, "short_question_without_episode_signals"},
		{"why is A angry?", models.IntentEpisode, 0.2, "short_question_without_episode_signals"},
		{"이 장면에서 민아가 왜 화났어?", models.IntentEpisode, 0.36, "episode_keywords=1"},
		{"12:30 장면 설명해줘", models.IntentEpisode, 0.51, "episode_keywords=1,timeline_expression"},
		{"Which character betrayed the captain?", models.IntentEpisode, 0.36, "episode_keywords=1"},
		{"Mina lied to Joon", models.IntentEpisode, 0.2, "episode_default_bias"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := ClassifyIntent(tt.question)
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestClassifyIntentConfidenceCap(t *testing.T) {
	got := ClassifyIntent("안녕 뭐해? 심심해 추천해줘")
	assert.Equal(t, models.IntentCasual, got.Intent)
	assert.LessOrEqual(t, got.Confidence, 0.98)
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "why did mina lie", NormalizeQuestion("  Why did Mina lie?!  "))
	assert.Equal(t, "12 30 장면", NormalizeQuestion("12:30  장면..."))
	assert.Equal(t, "captain", NormalizeQuestion("ＣＡＰＴＡＩＮ"))
}

func TestASCIIPrefixNeedsWordBoundary(t *testing.T) {
	got := ClassifyIntent("his story with the captain")
	assert.Equal(t, models.IntentEpisode, got.Intent)
	assert.NotContains(t, got.Reason, "casual_prefix")
}
