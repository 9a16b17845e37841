// Package prompts holds the LLM system prompts and the localized text used by
// the rule-based answer paths. The default catalog is embedded at build time.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Reply is a canned conclusion with one context line.
type Reply struct {
	Conclusion string `yaml:"conclusion"`
	Context    string `yaml:"context"`
}

// Catalog is the parsed prompt catalog.
type Catalog struct {
	System struct {
		QA     string `yaml:"qa"`
		Recap  string `yaml:"recap"`
		Casual string `yaml:"casual"`
	} `yaml:"system"`

	Languages  map[models.Language]string      `yaml:"languages"`
	Style      map[models.ResponseStyle]string `yaml:"style"`
	RecapStyle map[models.ResponseStyle]string `yaml:"recap_style"`

	History struct {
		Header    string `yaml:"header"`
		Footer    string `yaml:"footer"`
		User      string `yaml:"user"`
		Assistant string `yaml:"assistant"`
	} `yaml:"history"`

	Casual struct {
		Warning        string                                              `yaml:"warning"`
		Confidence     float64                                             `yaml:"confidence"`
		MenuMarkers    []string                                            `yaml:"menu_markers"`
		IntentLabel    map[models.Language]string                          `yaml:"intent_label"`
		SkippedContext map[models.Language]string                          `yaml:"skipped_context"`
		Menu           map[models.Language]map[models.ResponseStyle]string `yaml:"menu"`
		Replies        map[models.Language]map[models.ResponseStyle]Reply  `yaml:"replies"`
	} `yaml:"casual"`

	Answer struct {
		DefaultConclusion       string                                              `yaml:"default_conclusion"`
		DefaultContext          string                                              `yaml:"default_context"`
		DefaultInterpretation   string                                              `yaml:"default_interpretation"`
		SpeakerPlaceholder      map[models.Language]string                          `yaml:"speaker_placeholder"`
		Fallback                map[models.Language]map[models.ResponseStyle]string `yaml:"fallback"`
		FallbackInterpretations map[models.Language][]string                        `yaml:"fallback_interpretations"`
	} `yaml:"answer"`

	Recap struct {
		Seeds        map[models.RecapMode]string     `yaml:"seeds"`
		MaxRunes     int                             `yaml:"max_runes"`
		Empty        map[models.ResponseStyle]string `yaml:"empty"`
		WatchPoints  []string                        `yaml:"watch_points"`
		Insufficient string                          `yaml:"insufficient"`
	} `yaml:"recap"`

	Character struct {
		Summary      string `yaml:"summary"`
		Missing      string `yaml:"missing"`
		Insufficient string `yaml:"insufficient"`
	} `yaml:"character"`

	Graph struct {
		EdgeInsufficient     string `yaml:"edge_insufficient"`
		RelationInsufficient string `yaml:"relation_insufficient"`
	} `yaml:"graph"`

	Resolve struct {
		AliasReason   string `yaml:"alias_reason"`
		SpeakerReason string `yaml:"speaker_reason"`
		NotResolved   string `yaml:"not_resolved"`
	} `yaml:"resolve"`
}

// ErrIncomplete is returned by Parse when a required entry is missing.
var ErrIncomplete = errors.New("prompt catalog incomplete")

// Parse decodes a catalog and checks that every entry the services rely on
// is present.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	required := map[string]string{
		"system.qa":                 c.System.QA,
		"system.recap":              c.System.Recap,
		"system.casual":             c.System.Casual,
		"casual.warning":            c.Casual.Warning,
		"answer.default_conclusion": c.Answer.DefaultConclusion,
		"recap.insufficient":        c.Recap.Insufficient,
		"character.insufficient":    c.Character.Insufficient,
		"graph.edge_insufficient":   c.Graph.EdgeInsufficient,
		"resolve.not_resolved":      c.Resolve.NotResolved,
		"history.header":            c.History.Header,
		"recap.seeds.GENERAL":       c.Recap.Seeds[models.RecapGeneral],
		"style.FRIEND":              c.Style[models.StyleFriend],
		"answer.fallback.ko.FRIEND": c.Answer.Fallback[models.LangKorean][models.StyleFriend],
		"casual.replies.ko.FRIEND":  c.Casual.Replies[models.LangKorean][models.StyleFriend].Conclusion,
		"casual.menu.ko.FRIEND":     c.Casual.Menu[models.LangKorean][models.StyleFriend],
		"casual.intent_label.ko":    c.Casual.IntentLabel[models.LangKorean],
		"casual.skipped_context.ko": c.Casual.SkippedContext[models.LangKorean],
	}
	for key, v := range required {
		if v == "" {
			return fmt.Errorf("%w: %s", ErrIncomplete, key)
		}
	}
	if len(c.Answer.FallbackInterpretations[models.LangKorean]) < 2 {
		return fmt.Errorf("%w: answer.fallback_interpretations.ko needs 2 entries", ErrIncomplete)
	}
	return nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(catalogYAML)
})

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which only a broken build can cause.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return c
}

// LanguageName is the English name of lang used in output instructions.
func (c *Catalog) LanguageName(lang models.Language) string {
	if name, ok := c.Languages[lang]; ok {
		return name
	}
	return c.Languages[models.LangKorean]
}

// StyleInstruction is the tone instruction for QA prompts.
func (c *Catalog) StyleInstruction(style models.ResponseStyle) string {
	return pick(c.Style, style)
}

// RecapStyleInstruction is the tone instruction for recap prompts.
func (c *Catalog) RecapStyleInstruction(style models.ResponseStyle) string {
	if s := pick(c.RecapStyle, style); s != "" {
		return s
	}
	return c.StyleInstruction(style)
}

// CasualReply is the rule-based reply to a non-menu casual question.
func (c *Catalog) CasualReply(lang models.Language, style models.ResponseStyle) Reply {
	byStyle, ok := c.Casual.Replies[lang]
	if !ok {
		byStyle = c.Casual.Replies[models.LangKorean]
	}
	if r, ok := byStyle[style]; ok {
		return r
	}
	return byStyle[models.StyleFriend]
}

// MenuReply is the rule-based reply to a meal question.
func (c *Catalog) MenuReply(lang models.Language, style models.ResponseStyle) string {
	byStyle, ok := c.Casual.Menu[lang]
	if !ok {
		byStyle = c.Casual.Menu[models.LangKorean]
	}
	return pick(byStyle, style)
}

// CasualIntentLabel is the interpretation text of a casual answer.
func (c *Catalog) CasualIntentLabel(lang models.Language) string {
	return pickLang(c.Casual.IntentLabel, lang)
}

// CasualSkippedContext explains that retrieval was skipped.
func (c *Catalog) CasualSkippedContext(lang models.Language) string {
	return pickLang(c.Casual.SkippedContext, lang)
}

// FallbackConclusion is the rule-based conclusion naming the latest speaker.
func (c *Catalog) FallbackConclusion(lang models.Language, style models.ResponseStyle, speaker string) string {
	if speaker == "" {
		speaker = pickLang(c.Answer.SpeakerPlaceholder, lang)
	}
	byStyle, ok := c.Answer.Fallback[lang]
	if !ok {
		byStyle = c.Answer.Fallback[models.LangKorean]
	}
	return fmt.Sprintf(pick(byStyle, style), speaker)
}

// FallbackInterpretations are the two readings offered by the rule-based
// answer.
func (c *Catalog) FallbackInterpretations(lang models.Language) [2]string {
	texts, ok := c.Answer.FallbackInterpretations[lang]
	if !ok || len(texts) < 2 {
		texts = c.Answer.FallbackInterpretations[models.LangKorean]
	}
	return [2]string{texts[0], texts[1]}
}

// RecapSeed is the retrieval query used for a recap mode.
func (c *Catalog) RecapSeed(mode models.RecapMode) string {
	if s, ok := c.Recap.Seeds[mode]; ok {
		return s
	}
	return c.Recap.Seeds[models.RecapGeneral]
}

// RecapEmpty is the recap text used when there is nothing to summarize.
func (c *Catalog) RecapEmpty(style models.ResponseStyle) string {
	return pick(c.Recap.Empty, style)
}

func pick(m map[models.ResponseStyle]string, style models.ResponseStyle) string {
	if s, ok := m[style]; ok {
		return s
	}
	return m[models.StyleFriend]
}

func pickLang(m map[models.Language]string, lang models.Language) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m[models.LangKorean]
}
