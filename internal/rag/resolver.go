package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// DefaultMaxLines bounds how many dialogue lines feed an answer.
const DefaultMaxLines = 6

// Resolver turns retrieved chunks back into authoritative dialogue lines.
// Chunk membership is never trusted for timing: every line is re-read from
// the store with the cutoff applied.
type Resolver struct {
	lines store.LineReader
}

func NewResolver(lines store.LineReader) *Resolver {
	return &Resolver{lines: lines}
}

// Resolve returns up to maxLines lines referenced by chunks, chosen newest
// first and returned oldest first.
func (r *Resolver) Resolve(ctx context.Context, episodeID string, cutoffMs int64, chunks []ScoredChunk, maxLines int) ([]models.DialogueLine, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range chunks {
		for _, id := range c.LineIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	lines, err := r.lines.LinesByIDs(ctx, episodeID, ids, cutoffMs, maxLines)
	if err != nil {
		return nil, fmt.Errorf("resolve chunk lines: %w", err)
	}
	slices.Reverse(lines)
	return lines, nil
}

// Recent returns the latest maxLines lines at or before the cutoff, oldest
// first. It is the fallback when retrieval yields nothing.
func (r *Resolver) Recent(ctx context.Context, episodeID string, cutoffMs int64, maxLines int) ([]models.DialogueLine, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	lines, err := r.lines.RecentLines(ctx, episodeID, cutoffMs, maxLines)
	if err != nil {
		return nil, fmt.Errorf("recent lines: %w", err)
	}
	slices.Reverse(lines)
	return lines, nil
}

// ResolveOrRecent resolves chunks and falls back to the recent lines when
// no chunk line survives the cutoff.
func (r *Resolver) ResolveOrRecent(ctx context.Context, episodeID string, cutoffMs int64, chunks []ScoredChunk, maxLines int) ([]models.DialogueLine, error) {
	lines, err := r.Resolve(ctx, episodeID, cutoffMs, chunks, maxLines)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		return lines, nil
	}
	return r.Recent(ctx, episodeID, cutoffMs, maxLines)
}

// RerankLines orders lines by token overlap with question, then by start
// time descending. The input slice is not modified.
func RerankLines(question string, lines []models.DialogueLine) []models.DialogueLine {
	tokens := Tokenize(question)
	type scored struct {
		line  models.DialogueLine
		score float64
	}
	ranked := make([]scored, len(lines))
	for i, l := range lines {
		ranked[i] = scored{line: l, score: LexicalScore(tokens, l.Text)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.line.StartMs, a.line.StartMs)
	})
	out := make([]models.DialogueLine, len(ranked))
	for i, s := range ranked {
		out[i] = s.line
	}
	return out
}
