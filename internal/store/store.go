// Package store defines the storage collaborators used by the guarded
// retrieval pipeline. Implementations live in internal/db (SurrealDB),
// internal/sqlite and internal/store/memstore.
//
// Ordering contracts are part of each method. Readers that take a cutoff
// must never return rows whose start time is after it.
package store

import (
	"context"
	"errors"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVectorUnavailable indicates the backend cannot serve similarity queries.
	ErrVectorUnavailable = errors.New("vector search unavailable")
)

// LineReader reads dialogue lines.
type LineReader interface {
	// GetLine returns the line or nil when it does not exist.
	GetLine(ctx context.Context, id string) (*models.DialogueLine, error)

	// LinesByIDs returns lines of episodeID among ids with start <= cutoffMs,
	// newest first, at most limit.
	LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error)

	// RecentLines returns lines with start <= cutoffMs, newest first, at most limit.
	RecentLines(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.DialogueLine, error)

	// LinesMentioning returns lines with start <= cutoffMs whose text contains
	// mention case-insensitively, newest first, at most limit.
	LinesMentioning(ctx context.Context, episodeID string, cutoffMs int64, mention string, limit int) ([]models.DialogueLine, error)

	// EpisodeLines returns all lines of an episode, oldest first.
	EpisodeLines(ctx context.Context, episodeID string) ([]models.DialogueLine, error)
}

// ChunkReader reads retrieval chunks.
type ChunkReader interface {
	// ScanChunks returns chunks with start <= cutoffMs, newest first, at most limit.
	ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error)

	// EpisodeChunks returns all chunks of an episode, oldest first.
	EpisodeChunks(ctx context.Context, episodeID string) ([]models.Chunk, error)
}

// ChunkWriter replaces the derived chunks of an episode.
type ChunkWriter interface {
	ReplaceChunks(ctx context.Context, episodeID string, chunks []models.Chunk) error
}

// VectorSearcher is the optional accelerated similarity path.
type VectorSearcher interface {
	// SearchChunks returns up to limit chunks with start <= cutoffMs nearest
	// to embedding.
	SearchChunks(ctx context.Context, episodeID string, cutoffMs int64, embedding []float32, limit int) ([]models.Chunk, error)
}

// AliasMatch is a character found through one of its aliases.
type AliasMatch struct {
	Character models.Character
	Alias     models.Alias
}

// CharacterReader reads characters and their aliases.
type CharacterReader interface {
	// GetCharacter returns the character or nil when it does not exist.
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
	CharactersByIDs(ctx context.Context, ids []string) ([]models.Character, error)
	CharactersByTitle(ctx context.Context, titleID string) ([]models.Character, error)

	// CharactersByAlias matches alias text exactly, case-insensitively, ordered
	// by alias confidence descending.
	CharactersByAlias(ctx context.Context, titleID, alias string, limit int) ([]AliasMatch, error)
}

// RelationFilter selects relations visible at a cutoff.
type RelationFilter struct {
	TitleID           string
	CutoffMs          int64
	IncludeHypothesis bool
	Kinds             []models.RelationKind
	FocusCharacterID  string
}

// RelationReader reads character relations.
type RelationReader interface {
	// GetRelation returns the relation or nil when it does not exist.
	GetRelation(ctx context.Context, id string) (*models.Relation, error)

	// ActiveRelations returns relations whose validity window covers the cutoff.
	ActiveRelations(ctx context.Context, filter RelationFilter) ([]models.Relation, error)

	// RelationBetween returns the relation from fromID to toID with
	// valid_from <= cutoffMs and the greatest valid_from, or nil.
	RelationBetween(ctx context.Context, titleID, fromID, toID string, cutoffMs int64) (*models.Relation, error)
}

// EvidenceReader reads durable relation evidence records.
type EvidenceReader interface {
	// RelationEvidence returns records of relationID in episodeID with
	// representative time <= cutoffMs, newest first, at most limit.
	RelationEvidence(ctx context.Context, relationID, episodeID string, cutoffMs int64, limit int) ([]models.EvidenceRecord, error)

	// LatestRelationEvidence returns the newest record of relationID with
	// representative time <= cutoffMs in any episode, or nil.
	LatestRelationEvidence(ctx context.Context, relationID string, cutoffMs int64) (*models.EvidenceRecord, error)
}

// ChatStore persists chat sessions and messages.
type ChatStore interface {
	// GetOrCreateSession returns the newest session for the key, updating its
	// current time, or creates one.
	GetOrCreateSession(ctx context.Context, titleID, episodeID, userID string, currentTimeMs int64) (*models.ChatSession, error)

	// FindSession returns the newest session for the key or nil.
	FindSession(ctx context.Context, titleID, episodeID, userID string) (*models.ChatSession, error)

	AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error)

	// RecentMessages returns the newest messages of a session, newest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	// ListMessages returns the oldest messages of a session, oldest first.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	// DeleteHistory removes every session for the key and its messages.
	DeleteHistory(ctx context.Context, titleID, episodeID, userID string) (deletedMessages, deletedSessions int, err error)
}

// Catalog writes titles, episodes and their source data.
type Catalog interface {
	UpsertTitle(ctx context.Context, t models.Title) error
	UpsertEpisode(ctx context.Context, e models.Episode) error

	// GetEpisode returns the episode or nil when it does not exist.
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)

	InsertLines(ctx context.Context, lines []models.DialogueLine) error
	UpsertCharacter(ctx context.Context, c models.Character) error
	UpsertRelation(ctx context.Context, r models.Relation) error
	InsertEvidenceRecord(ctx context.Context, rec models.EvidenceRecord) error
}

// Store is the full storage collaborator.
type Store interface {
	LineReader
	ChunkReader
	ChunkWriter
	CharacterReader
	RelationReader
	EvidenceReader
	ChatStore
	Catalog
	Close(ctx context.Context) error
}

// Pinger is implemented by stores that hold a connection which can go away.
type Pinger interface {
	Ping(ctx context.Context) error
}
