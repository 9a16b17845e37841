package rag

import (
	"cmp"
	"math"
	"slices"

	"github.com/raphaelgruber/spoilerguard/internal/embedding"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// Hybrid score weights.
const (
	LexicalWeight = 0.35
	VectorWeight  = 0.65
)

// CharCodeEmbedding is the deterministic fallback query and chunk vector.
func CharCodeEmbedding(text string) []float32 {
	return embedding.CharCodeVector(text)
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1]. It is
// 0 when either vector is empty or zero, or when their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return max(-1, min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}

// HybridScore combines lexical overlap and vector similarity. Negative
// similarity contributes nothing.
func HybridScore(queryTokens []string, queryEmbedding []float32, c models.Chunk) float64 {
	lexical := LexicalScore(queryTokens, c.Text)
	vector := Cosine(queryEmbedding, c.Embedding)
	return LexicalWeight*lexical + VectorWeight*max(0, vector)
}

// ScoredChunk is a retrieved chunk with its hybrid score and the backend
// that produced it.
type ScoredChunk struct {
	models.Chunk
	Score  float64
	Source string
}

// Rerank scores chunks and returns the best limit of them, ordered by score
// then start time, both descending.
func Rerank(query string, queryEmbedding []float32, chunks []models.Chunk, source string, limit int) []ScoredChunk {
	tokens := Tokenize(query)
	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, ScoredChunk{Chunk: c, Score: HybridScore(tokens, queryEmbedding, c), Source: source})
	}
	slices.SortStableFunc(scored, func(a, b ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.StartMs, a.StartMs)
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
