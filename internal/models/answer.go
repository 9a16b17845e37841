package models

import (
	"strings"

	"golang.org/x/text/language"
)

// Interpretation is one labelled reading of the question.
type Interpretation struct {
	Label      string  `json:"label"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Answer is the structured answer payload.
type Answer struct {
	Conclusion        string           `json:"conclusion"`
	Context           []string         `json:"context"`
	Interpretations   []Interpretation `json:"interpretations"`
	OverallConfidence float64          `json:"overall_confidence"`
}

// ResponseStyle is the requested answer tone.
type ResponseStyle string

const (
	StyleFriend    ResponseStyle = "FRIEND"
	StyleAssistant ResponseStyle = "ASSISTANT"
	StyleCritic    ResponseStyle = "CRITIC"
)

// ParseResponseStyle returns the matching style, defaulting to StyleFriend.
func ParseResponseStyle(s string) ResponseStyle {
	switch ResponseStyle(strings.ToUpper(strings.TrimSpace(s))) {
	case StyleAssistant:
		return StyleAssistant
	case StyleCritic:
		return StyleCritic
	default:
		return StyleFriend
	}
}

// Language is the output language of an answer.
type Language string

const (
	LangKorean  Language = "ko"
	LangEnglish Language = "en"
)

// ParseLanguage maps a BCP 47 tag ("en", "en-US", "ko-KR") to an answer
// language. Anything that is not English answers in Korean.
func ParseLanguage(s string) Language {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return LangKorean
	}
	if base, _ := tag.Base(); base.String() == "en" {
		return LangEnglish
	}
	return LangKorean
}

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentCasual  Intent = "CASUAL"
	IntentEpisode Intent = "EPISODE"
)

// IntentResult is the classifier output. It is never persisted.
type IntentResult struct {
	Intent             Intent  `json:"intent"`
	Confidence         float64 `json:"confidence"`
	NormalizedQuestion string  `json:"normalized_question"`
	Reason             string  `json:"reason"`
}
