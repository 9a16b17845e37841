package parser

import (
	"cmp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// SizeLines is the number of consecutive lines per chunk.
	SizeLines int
	// NewID generates chunk ids. Defaults to random UUIDs.
	NewID func() string
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{SizeLines: models.DefaultChunkSizeLines}
}

// size returns the effective group size, never below models.MinChunkSizeLines.
func (c ChunkConfig) size() int {
	return max(models.MinChunkSizeLines, c.SizeLines)
}

// ChunkLines groups the lines of one episode into retrieval chunks of
// consecutive lines in playback order. A chunk spans from its first line's
// start to its last line's end and its text is the line texts joined by
// spaces. Embeddings are left empty. The input slice is not modified.
func ChunkLines(episodeID string, lines []models.DialogueLine, config ChunkConfig) []models.Chunk {
	if len(lines) == 0 {
		return nil
	}
	newID := config.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	ordered := slices.Clone(lines)
	slices.SortStableFunc(ordered, func(a, b models.DialogueLine) int {
		return cmp.Compare(a.StartMs, b.StartMs)
	})

	size := config.size()
	chunks := make([]models.Chunk, 0, (len(ordered)+size-1)/size)
	for group := range slices.Chunk(ordered, size) {
		texts := make([]string, 0, len(group))
		ids := make([]string, 0, len(group))
		for _, l := range group {
			texts = append(texts, strings.TrimSpace(l.Text))
			ids = append(ids, l.ID)
		}
		chunks = append(chunks, models.Chunk{
			ID:        newID(),
			EpisodeID: episodeID,
			StartMs:   group[0].StartMs,
			EndMs:     group[len(group)-1].EndMs,
			Text:      strings.Join(texts, " "),
			LineIDs:   ids,
		})
	}
	return chunks
}
