package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const sessionColumns = "id, title_id, episode_id, user_id, current_time_ms, created_at"

const messageColumns = "id, session_id, role, content, current_time_ms, model, prompt_tokens, completion_tokens, related_relation_id, created_at"

func (s *Store) FindSession(ctx context.Context, titleID, episodeID, userID string) (*models.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions
		WHERE title_id = ? AND episode_id = ? AND user_id = ?
		ORDER BY seq DESC LIMIT 1`, titleID, episodeID, userID)

	var (
		sess    models.ChatSession
		created string
	)
	err := row.Scan(&sess.ID, &sess.TitleID, &sess.EpisodeID, &sess.UserID, &sess.CurrentTimeMs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	sess.CreatedAt = parseTime(created)
	return &sess, nil
}

func (s *Store) GetOrCreateSession(ctx context.Context, titleID, episodeID, userID string, currentTimeMs int64) (*models.ChatSession, error) {
	existing, err := s.FindSession(ctx, titleID, episodeID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, err := s.exec(ctx, "UPDATE chat_sessions SET current_time_ms = ? WHERE id = ?", currentTimeMs, existing.ID); err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		existing.CurrentTimeMs = currentTimeMs
		return existing, nil
	}

	sess := models.ChatSession{
		ID:            uuid.New().String(),
		TitleID:       titleID,
		EpisodeID:     episodeID,
		UserID:        userID,
		CurrentTimeMs: currentTimeMs,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.exec(ctx, `INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.TitleID, sess.EpisodeID, sess.UserID, sess.CurrentTimeMs, formatTime(sess.CreatedAt)); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := s.exec(ctx, `INSERT INTO chat_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CurrentTimeMs, msg.Model,
		msg.PromptTokens, msg.CompletionTokens, msg.RelatedRelationID, formatTime(msg.CreatedAt)); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

func (s *Store) queryMessages(ctx context.Context, op, query string, args ...any) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m       models.ChatMessage
			created string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CurrentTimeMs, &m.Model,
			&m.PromptTokens, &m.CompletionTokens, &m.RelatedRelationID, &created); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return s.queryMessages(ctx, "recent messages", `SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = ? ORDER BY seq DESC LIMIT ?`, sessionID, limitArg(limit))
}

func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return s.queryMessages(ctx, "list messages", `SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = ? ORDER BY seq ASC LIMIT ?`, sessionID, limitArg(limit))
}

func (s *Store) DeleteHistory(ctx context.Context, titleID, episodeID, userID string) (int, int, error) {
	var messages, sessions int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id IN (
			SELECT id FROM chat_sessions WHERE title_id = ? AND episode_id = ? AND user_id = ?)`,
			titleID, episodeID, userID)
		if err != nil {
			return err
		}
		if messages, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, "DELETE FROM chat_sessions WHERE title_id = ? AND episode_id = ? AND user_id = ?",
			titleID, episodeID, userID)
		if err != nil {
			return err
		}
		sessions, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("delete history: %w", err)
	}
	return int(messages), int(sessions), nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) UpsertTitle(ctx context.Context, t models.Title) error {
	if _, err := s.exec(ctx, `INSERT INTO titles (id, name, description) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		t.ID, t.Name, t.Description); err != nil {
		return fmt.Errorf("upsert title: %w", err)
	}
	return nil
}

func (s *Store) UpsertEpisode(ctx context.Context, e models.Episode) error {
	if _, err := s.exec(ctx, `INSERT INTO episodes (id, title_id, season, number, name, duration_ms) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title_id = excluded.title_id, season = excluded.season,
			number = excluded.number, name = excluded.name, duration_ms = excluded.duration_ms`,
		e.ID, e.TitleID, e.Season, e.Number, e.Name, e.DurationMs); err != nil {
		return fmt.Errorf("upsert episode: %w", err)
	}
	return nil
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	var e models.Episode
	err := s.db.QueryRowContext(ctx, `SELECT id, title_id, season, number, name, duration_ms FROM episodes WHERE id = ?`, id).
		Scan(&e.ID, &e.TitleID, &e.Season, &e.Number, &e.Name, &e.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return &e, nil
}
