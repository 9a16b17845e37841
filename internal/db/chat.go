package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const sessionFields = `record::id(id) AS id, title_id, episode_id, user_id, current_time_ms, created_at`

const messageFields = `record::id(id) AS id, session_id, role, content, current_time_ms, model,
	prompt_tokens, completion_tokens, related_relation_id, created_at`

// FindSession returns the newest session for the key.
// Returns nil if none exists.
func (c *Client) FindSession(ctx context.Context, titleID, episodeID, userID string) (*models.ChatSession, error) {
	return queryOne[models.ChatSession](ctx, c, "find session", `
		SELECT `+sessionFields+` FROM chat_session
		WHERE title_id = $title AND episode_id = $episode AND user_id = $user
		ORDER BY created_at DESC
		LIMIT 1
	`, map[string]any{"title": titleID, "episode": episodeID, "user": userID})
}

// GetOrCreateSession reuses the newest session for the key, moving its
// current time forward, or creates a new one.
func (c *Client) GetOrCreateSession(ctx context.Context, titleID, episodeID, userID string, currentTimeMs int64) (*models.ChatSession, error) {
	existing, err := c.FindSession(ctx, titleID, episodeID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := c.exec(ctx, "update session", `
			UPDATE type::record("chat_session", $id) SET current_time_ms = $time
		`, map[string]any{"id": existing.ID, "time": currentTimeMs}); err != nil {
			return nil, err
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
	err = c.exec(ctx, "create session", `
		CREATE type::record("chat_session", $id) CONTENT {
			title_id: $title,
			episode_id: $episode,
			user_id: $user,
			current_time_ms: $time,
			created_at: $created
		}
	`, map[string]any{
		"id":      sess.ID,
		"title":   titleID,
		"episode": episodeID,
		"user":    userID,
		"time":    currentTimeMs,
		"created": sess.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// AppendMessage stores a chat turn. IDs are UUIDv7 so messages created in
// the same instant still sort in write order.
func (c *Client) AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("message id: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := c.exec(ctx, "append message", `
		CREATE type::record("chat_message", $id) CONTENT {
			session_id: $session,
			role: $role,
			content: $content,
			current_time_ms: $time,
			model: $model,
			prompt_tokens: $prompt_tokens,
			completion_tokens: $completion_tokens,
			related_relation_id: $relation,
			created_at: $created
		}
	`, map[string]any{
		"id":                msg.ID,
		"session":           msg.SessionID,
		"role":              msg.Role,
		"content":           msg.Content,
		"time":              msg.CurrentTimeMs,
		"model":             msg.Model,
		"prompt_tokens":     msg.PromptTokens,
		"completion_tokens": msg.CompletionTokens,
		"relation":          msg.RelatedRelationID,
		"created":           msg.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM chat_message
		WHERE session_id = $session
		ORDER BY created_at DESC, id DESC %s
	`, messageFields, limitClause(limit))
	return query[models.ChatMessage](ctx, c, "recent messages", sql, map[string]any{"session": sessionID, "limit": limit})
}

func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM chat_message
		WHERE session_id = $session
		ORDER BY created_at ASC, id ASC %s
	`, messageFields, limitClause(limit))
	return query[models.ChatMessage](ctx, c, "list messages", sql, map[string]any{"session": sessionID, "limit": limit})
}

type historyCounts struct {
	Messages int `json:"messages"`
	Sessions int `json:"sessions"`
}

// DeleteHistory removes every session for the key and its messages in one
// transaction.
func (c *Client) DeleteHistory(ctx context.Context, titleID, episodeID, userID string) (int, int, error) {
	counts, err := queryOne[historyCounts](ctx, c, "delete history", `
		BEGIN TRANSACTION;
		LET $sessions = (SELECT VALUE record::id(id) FROM chat_session
			WHERE title_id = $title AND episode_id = $episode AND user_id = $user);
		LET $messages = (DELETE chat_message WHERE session_id IN $sessions RETURN BEFORE);
		DELETE chat_session WHERE title_id = $title AND episode_id = $episode AND user_id = $user;
		COMMIT TRANSACTION;
		RETURN [{ messages: array::len($messages), sessions: array::len($sessions) }];
	`, map[string]any{"title": titleID, "episode": episodeID, "user": userID})
	if err != nil {
		return 0, 0, err
	}
	if counts == nil {
		return 0, 0, nil
	}
	return counts.Messages, counts.Sessions, nil
}
