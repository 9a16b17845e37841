package models

import "strings"

// RelationKind is the closed set of relationship categories.
type RelationKind string

const (
	RelationFamily          RelationKind = "FAMILY"
	RelationRomance         RelationKind = "ROMANCE"
	RelationAlly            RelationKind = "ALLY"
	RelationMistrust        RelationKind = "MISTRUST"
	RelationBossSubordinate RelationKind = "BOSS_SUBORDINATE"
	RelationFriend          RelationKind = "FRIEND"
	RelationRival           RelationKind = "RIVAL"
	RelationUnknown         RelationKind = "UNKNOWN"
)

var relationKinds = map[RelationKind]struct{}{
	RelationFamily:          {},
	RelationRomance:         {},
	RelationAlly:            {},
	RelationMistrust:        {},
	RelationBossSubordinate: {},
	RelationFriend:          {},
	RelationRival:           {},
	RelationUnknown:         {},
}

// ParseRelationKind maps a stored kind string to a RelationKind.
// Strings outside the closed set map to RelationUnknown.
func ParseRelationKind(s string) RelationKind {
	k := RelationKind(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := relationKinds[k]; ok {
		return k
	}
	return RelationUnknown
}

// Relation is a directed, time-bounded relationship between two characters.
type Relation struct {
	ID              string       `json:"id" yaml:"id"`
	TitleID         string       `json:"title_id" yaml:"title_id"`
	FromCharacterID string       `json:"from_character_id" yaml:"from"`
	ToCharacterID   string       `json:"to_character_id" yaml:"to"`
	Kind            RelationKind `json:"relation_type" yaml:"kind"`
	IsHypothesis    bool         `json:"is_hypothesis" yaml:"hypothesis"`
	Confidence      float64      `json:"confidence" yaml:"confidence"`
	ValidFromMs     int64        `json:"valid_from_time_ms" yaml:"valid_from_ms"`
	ValidToMs       *int64       `json:"valid_to_time_ms,omitempty" yaml:"valid_to_ms"`
}

// VisibleAt reports whether the validity window covers cutoffMs.
// Both ends are inclusive and a nil ValidToMs is open-ended.
func (r Relation) VisibleAt(cutoffMs int64) bool {
	if r.ValidFromMs > cutoffMs {
		return false
	}
	return r.ValidToMs == nil || *r.ValidToMs >= cutoffMs
}

// Touches reports whether characterID is either endpoint.
func (r Relation) Touches(characterID string) bool {
	return r.FromCharacterID == characterID || r.ToCharacterID == characterID
}

// EvidenceRecord durably links a relation to the dialogue lines supporting it.
// LineIDs are kept in order_index order.
type EvidenceRecord struct {
	ID                   string   `json:"id" yaml:"id"`
	RelationID           string   `json:"relation_id" yaml:"relation_id"`
	EpisodeID            string   `json:"episode_id" yaml:"episode_id"`
	RepresentativeTimeMs int64    `json:"representative_time_ms" yaml:"time_ms"`
	Summary              string   `json:"summary" yaml:"summary"`
	LineIDs              []string `json:"line_ids" yaml:"line_ids"`
}
