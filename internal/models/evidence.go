package models

// EvidenceLine is a dialogue line quoted as evidence.
type EvidenceLine struct {
	LineID      string `json:"subtitle_line_id"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
	SpeakerText string `json:"speaker_text,omitempty"`
	Text        string `json:"text"`
}

// Evidence is a transient excerpt of one or two lines justifying an answer or edge.
type Evidence struct {
	ID                   string         `json:"evidence_id"`
	RepresentativeTimeMs int64          `json:"representative_time_ms"`
	Summary              string         `json:"summary"`
	Lines                []EvidenceLine `json:"lines"`
}

// MaxEvidenceLines bounds how many lines an evidence item may carry.
const MaxEvidenceLines = 2

// EvidenceLineFrom copies a dialogue line into its evidence form.
func EvidenceLineFrom(l DialogueLine) EvidenceLine {
	return EvidenceLine{
		LineID:      l.ID,
		StartMs:     l.StartMs,
		EndMs:       l.EndMs,
		SpeakerText: l.SpeakerText,
		Text:        l.Text,
	}
}

// WarningCode identifies why a warning was raised.
type WarningCode string

const (
	WarnLineNotFound             WarningCode = "LINE_NOT_FOUND"
	WarnEpisodeMismatch          WarningCode = "EPISODE_MISMATCH"
	WarnTimeGuardViolation       WarningCode = "TIME_GUARD_VIOLATION"
	WarnEvidenceInsufficient     WarningCode = "EVIDENCE_INSUFFICIENT"
	WarnAssertiveWithoutEvidence WarningCode = "ASSERTIVE_WITHOUT_EVIDENCE"
	WarnQuestionIntentCasual     WarningCode = "QUESTION_INTENT_CASUAL"
	WarnEntityNotResolved        WarningCode = "ENTITY_NOT_RESOLVED"
)

// Warning is a non-fatal note attached to a response.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// HasWarning reports whether warnings contains code.
func HasWarning(warnings []Warning, code WarningCode) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
