package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const lineColumns = "id, episode_id, start_ms, end_ms, speaker_text, text, speaker_character_id"

const chunkColumns = "id, episode_id, start_ms, end_ms, text_concat, line_ids_json, embedding_json"

func scanLine(row scanner) (models.DialogueLine, error) {
	var (
		l         models.DialogueLine
		speakerID sql.NullString
	)
	if err := row.Scan(&l.ID, &l.EpisodeID, &l.StartMs, &l.EndMs, &l.SpeakerText, &l.Text, &speakerID); err != nil {
		return l, err
	}
	if speakerID.Valid {
		l.SpeakerCharacterID = &speakerID.String
	}
	return l, nil
}

func (s *Store) queryLines(ctx context.Context, op, query string, args ...any) ([]models.DialogueLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.DialogueLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) GetLine(ctx context.Context, id string) (*models.DialogueLine, error) {
	lines, err := s.queryLines(ctx, "get line", "SELECT "+lineColumns+" FROM dialogue_lines WHERE id = ?", id)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	return &lines[0], nil
}

func (s *Store) LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	idArgs := dedupe(ids)
	if len(idArgs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM dialogue_lines
		WHERE id IN (%s) AND episode_id = ? AND start_ms <= ?
		ORDER BY start_ms DESC, id ASC LIMIT ?`, lineColumns, placeholders(len(idArgs)))

	args := append(idArgs, episodeID, cutoffMs, limitArg(limit))
	return s.queryLines(ctx, "lines by ids", query, args...)
}

func (s *Store) RecentLines(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	return s.queryLines(ctx, "recent lines", `SELECT `+lineColumns+` FROM dialogue_lines
		WHERE episode_id = ? AND start_ms <= ?
		ORDER BY start_ms DESC, id ASC LIMIT ?`, episodeID, cutoffMs, limitArg(limit))
}

// LinesMentioning filters in SQL on episode and cutoff, then matches text in
// Go because SQLite's LIKE only folds ASCII.
func (s *Store) LinesMentioning(ctx context.Context, episodeID string, cutoffMs int64, mention string, limit int) ([]models.DialogueLine, error) {
	candidates, err := s.RecentLines(ctx, episodeID, cutoffMs, 0)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(mention)
	var out []models.DialogueLine
	for _, l := range candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(l.Text), needle) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) EpisodeLines(ctx context.Context, episodeID string) ([]models.DialogueLine, error) {
	return s.queryLines(ctx, "episode lines", `SELECT `+lineColumns+` FROM dialogue_lines
		WHERE episode_id = ? ORDER BY start_ms ASC, id ASC`, episodeID)
}

// InsertLines writes lines, replacing any with the same ID.
func (s *Store) InsertLines(ctx context.Context, lines []models.DialogueLine) error {
	if len(lines) == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO dialogue_lines (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, l := range lines {
			id := l.ID
			if id == "" {
				id = uuid.New().String()
			}
			var speakerID sql.NullString
			if l.SpeakerCharacterID != nil {
				speakerID = sql.NullString{String: *l.SpeakerCharacterID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, l.EpisodeID, l.StartMs, l.EndMs, l.SpeakerText, l.Text, speakerID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// =============================================================================
// CHUNKS
// =============================================================================

func scanChunk(row scanner) (models.Chunk, error) {
	var (
		c         models.Chunk
		lineIDs   string
		embedding sql.NullString
	)
	if err := row.Scan(&c.ID, &c.EpisodeID, &c.StartMs, &c.EndMs, &c.Text, &lineIDs, &embedding); err != nil {
		return c, err
	}
	ids, err := decodeStrings(lineIDs)
	if err != nil {
		return c, err
	}
	c.LineIDs = ids
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
			return c, fmt.Errorf("decode embedding: %w", err)
		}
	}
	return c, nil
}

func (s *Store) queryChunks(ctx context.Context, op, query string, args ...any) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	return s.queryChunks(ctx, "scan chunks", `SELECT `+chunkColumns+` FROM chunks
		WHERE episode_id = ? AND start_ms <= ?
		ORDER BY start_ms DESC, rowid ASC LIMIT ?`, episodeID, cutoffMs, limitArg(limit))
}

func (s *Store) EpisodeChunks(ctx context.Context, episodeID string) ([]models.Chunk, error) {
	return s.queryChunks(ctx, "episode chunks", `SELECT `+chunkColumns+` FROM chunks
		WHERE episode_id = ? ORDER BY start_ms ASC, rowid ASC`, episodeID)
}

// ReplaceChunks atomically swaps the chunk set of an episode.
func (s *Store) ReplaceChunks(ctx context.Context, episodeID string, chunks []models.Chunk) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE episode_id = ?", episodeID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range chunks {
			id := c.ID
			if id == "" {
				id = uuid.New().String()
			}
			lineIDs := c.LineIDs
			if lineIDs == nil {
				lineIDs = []string{}
			}
			lineJSON, err := encodeJSON(lineIDs)
			if err != nil {
				return err
			}
			var embedding sql.NullString
			if len(c.Embedding) > 0 {
				raw, err := encodeJSON(c.Embedding)
				if err != nil {
					return err
				}
				embedding = sql.NullString{String: raw, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, episodeID, c.StartMs, c.EndMs, c.Text, lineJSON, embedding); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	return nil
}
