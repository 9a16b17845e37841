package rag

import (
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stopwords dropped", "Where is the captain?", []string{"where", "captain"}},
		{"single letters dropped", "A b cd", []string{"cd"}},
		{"single digits kept", "episode 3", []string{"episode", "3"}},
		{"korean", "민아는 왜 화났어", []string{"민아는", "화났어"}},
		{"fullwidth folded", "ＣＡＰＴＡＩＮ", []string{"captain"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestLexicalScore(t *testing.T) {
	assert.Zero(t, LexicalScore(nil, "anything"))

	q := Tokenize("captain harbor night")
	assert.InDelta(t, 2.0/3.0, LexicalScore(q, "At the harbor, with Captain Lee."), 1e-9)

	// repeated query tokens only match as often as the text has them
	q = Tokenize("harbor harbor")
	assert.InDelta(t, 0.5, LexicalScore(q, "the harbor"), 1e-9)
}

func TestCosine(t *testing.T) {
	assert.Zero(t, Cosine(nil, []float32{1}))
	assert.Zero(t, Cosine([]float32{1, 2}, []float32{1}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}

func TestHybridScoreIgnoresNegativeSimilarity(t *testing.T) {
	c := models.Chunk{Text: "nothing shared", Embedding: []float32{-1, 0}}
	assert.Zero(t, HybridScore([]string{"captain"}, []float32{1, 0}, c))
}

func TestRerankOrdersByScoreThenRecency(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "old", StartMs: 100, Text: "captain"},
		{ID: "new", StartMs: 900, Text: "captain"},
		{ID: "miss", StartMs: 500, Text: "unrelated"},
	}
	got := Rerank("captain", nil, chunks, SourceScan, 2)
	assert.Equal(t, []string{"new", "old"}, chunkIDs(got))
	assert.Equal(t, SourceScan, got[0].Source)
	assert.InDelta(t, LexicalWeight, got[0].Score, 1e-9)
}
