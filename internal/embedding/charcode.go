package embedding

import (
	"context"
	"math"
)

const (
	// CharCodeModel names the deterministic embedder.
	CharCodeModel = "charcode-v1"

	// CharCodeDimension is the fixed vector size of CharCodeVector.
	CharCodeDimension = 4

	charCodeWindow = 120
)

// CharCodeVector returns a 4-slot vector computed from the first 120
// characters of text. Slot i%4 accumulates (codepoint % 97) / 97; each slot
// is then divided by the number of characters and rounded to 6 decimals.
// Empty text yields the zero vector.
func CharCodeVector(text string) []float32 {
	var slots [CharCodeDimension]float64
	n := 0
	for _, r := range text {
		if n == charCodeWindow {
			break
		}
		slots[n%CharCodeDimension] += float64(int(r)%97) / 97.0
		n++
	}
	denom := float64(max(1, n))
	out := make([]float32, CharCodeDimension)
	for i, v := range slots {
		out[i] = float32(math.Round(v/denom*1e6) / 1e6)
	}
	return out
}

// CharCode is an Embedder over CharCodeVector. It never fails.
type CharCode struct{}

var _ Embedder = CharCode{}

// NewCharCode returns the deterministic embedder.
func NewCharCode() CharCode { return CharCode{} }

func (CharCode) Embed(ctx context.Context, text string) ([]float32, error) {
	return CharCodeVector(text), nil
}

func (CharCode) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = CharCodeVector(t)
	}
	return out, nil
}

func (CharCode) Model() string  { return CharCodeModel }
func (CharCode) Dimension() int { return CharCodeDimension }
