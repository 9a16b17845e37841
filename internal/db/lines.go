package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

const lineFields = `record::id(id) AS id, episode_id, start_ms, end_ms, speaker_text, text, speaker_character_id`

const chunkFields = `record::id(id) AS id, episode_id, start_ms, end_ms, text_concat, subtitle_line_ids, embedding`

// GetLine retrieves a dialogue line by ID.
// Returns nil if not found.
func (c *Client) GetLine(ctx context.Context, id string) (*models.DialogueLine, error) {
	return queryOne[models.DialogueLine](ctx, c, "get line",
		`SELECT `+lineFields+` FROM type::record("dialogue_line", $id)`,
		map[string]any{"id": id})
}

func (c *Client) LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	rids := recordIDs("dialogue_line", ids)
	if len(rids) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`
		SELECT %s FROM $ids
		WHERE episode_id = $episode AND start_ms <= $cutoff
		ORDER BY start_ms DESC, id ASC %s
	`, lineFields, limitClause(limit))

	return query[models.DialogueLine](ctx, c, "lines by ids", sql, map[string]any{
		"ids":     rids,
		"episode": episodeID,
		"cutoff":  cutoffMs,
		"limit":   limit,
	})
}

func (c *Client) RecentLines(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM dialogue_line
		WHERE episode_id = $episode AND start_ms <= $cutoff
		ORDER BY start_ms DESC, id ASC %s
	`, lineFields, limitClause(limit))

	return query[models.DialogueLine](ctx, c, "recent lines", sql, map[string]any{
		"episode": episodeID,
		"cutoff":  cutoffMs,
		"limit":   limit,
	})
}

func (c *Client) LinesMentioning(ctx context.Context, episodeID string, cutoffMs int64, mention string, limit int) ([]models.DialogueLine, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM dialogue_line
		WHERE episode_id = $episode AND start_ms <= $cutoff
			AND string::contains(string::lowercase(text), $needle)
		ORDER BY start_ms DESC, id ASC %s
	`, lineFields, limitClause(limit))

	return query[models.DialogueLine](ctx, c, "lines mentioning", sql, map[string]any{
		"episode": episodeID,
		"cutoff":  cutoffMs,
		"needle":  strings.ToLower(mention),
		"limit":   limit,
	})
}

func (c *Client) EpisodeLines(ctx context.Context, episodeID string) ([]models.DialogueLine, error) {
	return query[models.DialogueLine](ctx, c, "episode lines", `
		SELECT `+lineFields+` FROM dialogue_line
		WHERE episode_id = $episode
		ORDER BY start_ms ASC, id ASC
	`, map[string]any{"episode": episodeID})
}

// InsertLines writes lines, replacing any with the same ID. Lines without
// an ID get a random one.
func (c *Client) InsertLines(ctx context.Context, lines []models.DialogueLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		content := map[string]any{
			"episode_id":   l.EpisodeID,
			"start_ms":     l.StartMs,
			"end_ms":       l.EndMs,
			"speaker_text": l.SpeakerText,
			"text":         l.Text,
		}
		if l.SpeakerCharacterID != nil {
			content["speaker_character_id"] = *l.SpeakerCharacterID
		}
		rows = append(rows, map[string]any{"id": id, "content": content})
	}

	return c.exec(ctx, "insert lines", `
		BEGIN TRANSACTION;
		FOR $row IN $rows {
			UPSERT type::record("dialogue_line", $row.id) CONTENT $row.content;
		};
		COMMIT TRANSACTION;
	`, map[string]any{"rows": rows})
}

// =============================================================================
// CHUNKS
// =============================================================================

func (c *Client) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM chunk
		WHERE episode_id = $episode AND start_ms <= $cutoff
		ORDER BY start_ms DESC %s
	`, chunkFields, limitClause(limit))

	return query[models.Chunk](ctx, c, "scan chunks", sql, map[string]any{
		"episode": episodeID,
		"cutoff":  cutoffMs,
		"limit":   limit,
	})
}

func (c *Client) EpisodeChunks(ctx context.Context, episodeID string) ([]models.Chunk, error) {
	return query[models.Chunk](ctx, c, "episode chunks", `
		SELECT `+chunkFields+` FROM chunk
		WHERE episode_id = $episode
		ORDER BY start_ms ASC
	`, map[string]any{"episode": episodeID})
}

// ReplaceChunks atomically swaps the chunk set of an episode.
func (c *Client) ReplaceChunks(ctx context.Context, episodeID string, chunks []models.Chunk) error {
	rows := make([]map[string]any, 0, len(chunks))
	for _, ch := range chunks {
		id := ch.ID
		if id == "" {
			id = uuid.New().String()
		}
		lineIDs := ch.LineIDs
		if lineIDs == nil {
			lineIDs = []string{}
		}
		content := map[string]any{
			"episode_id":        episodeID,
			"start_ms":          ch.StartMs,
			"end_ms":            ch.EndMs,
			"text_concat":       ch.Text,
			"subtitle_line_ids": lineIDs,
		}
		if len(ch.Embedding) > 0 {
			content["embedding"] = ch.Embedding
		}
		rows = append(rows, map[string]any{"id": id, "content": content})
	}

	return c.exec(ctx, "replace chunks", `
		BEGIN TRANSACTION;
		DELETE chunk WHERE episode_id = $episode;
		FOR $row IN $rows {
			CREATE type::record("chunk", $row.id) CONTENT $row.content;
		};
		COMMIT TRANSACTION;
	`, map[string]any{"episode": episodeID, "rows": rows})
}

// SearchChunks runs an HNSW nearest-neighbour query restricted to the
// episode and cutoff. The candidate pool is widened because the index is
// consulted before the WHERE filter.
func (c *Client) SearchChunks(ctx context.Context, episodeID string, cutoffMs int64, embedding []float32, limit int) ([]models.Chunk, error) {
	if len(embedding) == 0 {
		return nil, store.ErrVectorUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	sql := fmt.Sprintf(`
		SELECT %s, vector::distance::knn() AS distance FROM chunk
		WHERE embedding <|%d,40|> $emb AND episode_id = $episode AND start_ms <= $cutoff
		ORDER BY distance ASC
		LIMIT $limit
	`, chunkFields, limit*4)

	return query[models.Chunk](ctx, c, "search chunks", sql, map[string]any{
		"emb":     embedding,
		"episode": episodeID,
		"cutoff":  cutoffMs,
		"limit":   limit,
	})
}
