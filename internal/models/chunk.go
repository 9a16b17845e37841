package models

// Chunk groups consecutive dialogue lines of one episode into a retrieval unit.
// Chunks are derived data and are rebuilt wholesale per episode.
type Chunk struct {
	ID        string    `json:"id"`
	EpisodeID string    `json:"episode_id"`
	StartMs   int64     `json:"start_ms"`
	EndMs     int64     `json:"end_ms"`
	Text      string    `json:"text_concat"`
	LineIDs   []string  `json:"subtitle_line_ids"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// DefaultChunkSizeLines is the number of lines grouped into one chunk.
const DefaultChunkSizeLines = 6

// MinChunkSizeLines is the smallest allowed chunk size.
const MinChunkSizeLines = 2
