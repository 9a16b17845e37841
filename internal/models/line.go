package models

// DialogueLine is a single timed subtitle line of an episode.
// Lines are immutable apart from the speaker character link.
type DialogueLine struct {
	ID                 string  `json:"id"`
	EpisodeID          string  `json:"episode_id"`
	StartMs            int64   `json:"start_ms"`
	EndMs              int64   `json:"end_ms"`
	SpeakerText        string  `json:"speaker_text,omitempty"`
	Text               string  `json:"text"`
	SpeakerCharacterID *string `json:"speaker_character_id,omitempty"`
}

// DialogueLineInput is the payload for ingesting a subtitle line.
type DialogueLineInput struct {
	StartMs            int64   `json:"start_ms" yaml:"start_ms"`
	EndMs              int64   `json:"end_ms" yaml:"end_ms"`
	Text               string  `json:"text" yaml:"text"`
	SpeakerText        string  `json:"speaker_text,omitempty" yaml:"speaker"`
	SpeakerCharacterID *string `json:"speaker_character_id,omitempty" yaml:"speaker_character_id"`
}
