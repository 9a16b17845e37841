package models

import "time"

// ChatSession groups the QA turns of one user for one episode.
type ChatSession struct {
	ID            string    `json:"id"`
	TitleID       string    `json:"title_id"`
	EpisodeID     string    `json:"episode_id"`
	UserID        string    `json:"user_id"`
	CurrentTimeMs int64     `json:"current_time_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single persisted turn of a chat session.
type ChatMessage struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	CurrentTimeMs     int64     `json:"current_time_ms"`
	Model             string    `json:"model,omitempty"`
	PromptTokens      int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  int       `json:"completion_tokens,omitempty"`
	RelatedRelationID string    `json:"related_relation_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
