package models

// Meta is the envelope attached to every guarded response.
type Meta struct {
	TitleID             string `json:"title_id,omitempty"`
	EpisodeID           string `json:"episode_id"`
	CurrentTimeMs       int64  `json:"current_time_ms"`
	SpoilerGuardApplied bool   `json:"spoiler_guard_applied"`
	Model               string `json:"model,omitempty"`
}

// ModelRuleBased is reported in Meta.Model when no LLM produced the answer.
const ModelRuleBased = "rule-based"

// Focus narrows a question to characters or a relation.
type Focus struct {
	CharacterIDs []string `json:"character_ids,omitempty"`
	RelationID   string   `json:"relation_id,omitempty"`
}

// QARequest asks a question at a playback position.
type QARequest struct {
	TitleID       string        `json:"title_id"`
	EpisodeID     string        `json:"episode_id"`
	CurrentTimeMs int64         `json:"current_time_ms"`
	Question      string        `json:"question"`
	Focus         *Focus        `json:"focus,omitempty"`
	Language      Language      `json:"language,omitempty"`
	ResponseStyle ResponseStyle `json:"response_style,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
}

// Highlight marks graph elements for a client to emphasize.
type Highlight struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// GraphFocus points a client at the relation an answer is about.
type GraphFocus struct {
	RelationID string    `json:"relation_id"`
	Highlight  Highlight `json:"highlight"`
}

// QAResponse is the guarded answer to a QARequest.
type QAResponse struct {
	Meta              Meta        `json:"meta"`
	Answer            Answer      `json:"answer"`
	Evidences         []Evidence  `json:"evidences"`
	RelatedGraphFocus *GraphFocus `json:"related_graph_focus"`
	Warnings          []Warning   `json:"warnings"`
}

// GraphRequest asks for the relationship graph visible at a cutoff.
type GraphRequest struct {
	TitleID           string         `json:"title_id"`
	EpisodeID         string         `json:"episode_id"`
	CurrentTimeMs     int64          `json:"current_time_ms"`
	FocusCharacterID  string         `json:"focus_character_id,omitempty"`
	RelationKinds     []RelationKind `json:"relation_types,omitempty"`
	IncludeHypothesis *bool          `json:"include_hypothesis,omitempty"`
}

// GraphNode is a character in the graph.
type GraphNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases"`
}

// GraphEdge is a visible relation with its sanitized evidence.
type GraphEdge struct {
	ID              string       `json:"id"`
	FromCharacterID string       `json:"from_character_id"`
	ToCharacterID   string       `json:"to_character_id"`
	RelationType    RelationKind `json:"relation_type"`
	IsHypothesis    bool         `json:"is_hypothesis"`
	Confidence      float64      `json:"confidence"`
	ValidFromTimeMs int64        `json:"valid_from_time_ms"`
	ValidToTimeMs   *int64       `json:"valid_to_time_ms"`
	Evidences       []Evidence   `json:"evidences"`
}

// EdgeFrom builds a graph edge from a relation and its evidence.
func EdgeFrom(r Relation, evidences []Evidence) GraphEdge {
	if evidences == nil {
		evidences = []Evidence{}
	}
	return GraphEdge{
		ID:              r.ID,
		FromCharacterID: r.FromCharacterID,
		ToCharacterID:   r.ToCharacterID,
		RelationType:    r.Kind,
		IsHypothesis:    r.IsHypothesis,
		Confidence:      r.Confidence,
		ValidFromTimeMs: r.ValidFromMs,
		ValidToTimeMs:   r.ValidToMs,
		Evidences:       evidences,
	}
}

// GraphResponse is the relationship graph at a cutoff.
type GraphResponse struct {
	Meta     Meta        `json:"meta"`
	Nodes    []GraphNode `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
	Warnings []Warning   `json:"warnings"`
}

// RelationDetailResponse is a single relation with its evidence.
type RelationDetailResponse struct {
	Relation GraphEdge `json:"relation"`
	Warnings []Warning `json:"warnings"`
}

// CardMeta is the envelope of a character card.
type CardMeta struct {
	CharacterID         string `json:"character_id"`
	EpisodeID           string `json:"episode_id"`
	CurrentTimeMs       int64  `json:"current_time_ms"`
	SpoilerGuardApplied bool   `json:"spoiler_guard_applied"`
}

// CardCharacter is the character section of a card.
type CardCharacter struct {
	ID            string   `json:"id"`
	TitleID       string   `json:"title_id"`
	CanonicalName string   `json:"canonical_name"`
	Description   string   `json:"description,omitempty"`
	Aliases       []string `json:"aliases"`
}

// CardSummary is the textual digest of a character up to the cutoff.
type CardSummary struct {
	Text      string   `json:"text"`
	KeyEvents []string `json:"key_events"`
}

// CharacterCardResponse describes a character as known at the cutoff.
type CharacterCardResponse struct {
	Meta      CardMeta      `json:"meta"`
	Character CardCharacter `json:"character"`
	Summary   CardSummary   `json:"summary"`
	Evidences []Evidence    `json:"evidences"`
	Warnings  []Warning     `json:"warnings"`
}

// ResolveEntityRequest maps a free-text mention to characters.
type ResolveEntityRequest struct {
	TitleID       string `json:"title_id"`
	EpisodeID     string `json:"episode_id"`
	CurrentTimeMs int64  `json:"current_time_ms"`
	MentionText   string `json:"mention_text"`
	ContextLineID string `json:"context_subtitle_line_id,omitempty"`
}

// EntityCandidate is one possible resolution of a mention.
type EntityCandidate struct {
	CharacterID   string  `json:"character_id"`
	CanonicalName string  `json:"canonical_name"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
}

// ResolveEntityResponse lists candidates for a mention.
type ResolveEntityResponse struct {
	Meta        Meta              `json:"meta"`
	MentionText string            `json:"mention_text"`
	Candidates  []EntityCandidate `json:"candidates"`
	Warnings    []Warning         `json:"warnings"`
}

// RecapPreset is the requested recap length.
type RecapPreset string

const (
	RecapTwentySec RecapPreset = "TWENTY_SEC"
	RecapOneMin    RecapPreset = "ONE_MIN"
	RecapThreeMin  RecapPreset = "THREE_MIN"
)

// RecapMode is the recap focus.
type RecapMode string

const (
	RecapGeneral          RecapMode = "GENERAL"
	RecapCharacterFocused RecapMode = "CHARACTER_FOCUSED"
	RecapConflictFocused  RecapMode = "CONFLICT_FOCUSED"
)

// RecapRequest asks for a summary of the story up to the cutoff.
type RecapRequest struct {
	TitleID       string        `json:"title_id"`
	EpisodeID     string        `json:"episode_id"`
	CurrentTimeMs int64         `json:"current_time_ms"`
	Preset        RecapPreset   `json:"preset,omitempty"`
	Mode          RecapMode     `json:"mode,omitempty"`
	Language      Language      `json:"language,omitempty"`
	ResponseStyle ResponseStyle `json:"response_style,omitempty"`
}

// Recap is the summary body.
type Recap struct {
	Text    string   `json:"text"`
	Bullets []string `json:"bullets"`
}

// RecapResponse is the guarded recap.
type RecapResponse struct {
	Meta        Meta       `json:"meta"`
	Recap       Recap      `json:"recap"`
	WatchPoints []string   `json:"watch_points"`
	Evidences   []Evidence `json:"evidences"`
	Warnings    []Warning  `json:"warnings"`
}

// ChatHistoryResponse lists the persisted turns of a session.
type ChatHistoryResponse struct {
	SessionID string        `json:"session_id,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// ChatHistoryClearResponse reports what a history reset removed.
type ChatHistoryClearResponse struct {
	DeletedMessages int `json:"deleted_messages"`
	DeletedSessions int `json:"deleted_sessions"`
}

// IngestLinesRequest bulk-inserts subtitle lines into an episode.
type IngestLinesRequest struct {
	Lines []DialogueLineInput `json:"lines"`
}

// IngestLinesResponse reports an ingest and the index job it queued.
type IngestLinesResponse struct {
	InsertedCount   int    `json:"inserted_count"`
	QueuedIndexJobs int    `json:"queued_index_jobs"`
	JobID           string `json:"job_id,omitempty"`
}
