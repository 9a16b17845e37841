// Package service provides the guarded QA, recap, graph and indexing
// operations. Every read that feeds a response goes through the cutoff-aware
// rag pipeline and the evidence sanitizer.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/spoilerguard/internal/llm"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/prompts"
)

// ErrInvalid marks a request that failed validation.
var ErrInvalid = errors.New("invalid request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// MaxQuestionRunes bounds the length of a question.
const MaxQuestionRunes = 2000

// Read limits.
const (
	cardLineWindow    = 80
	cardMatchLimit    = 4
	cardKeyEvents     = 3
	mentionLineLimit  = 20
	aliasMatchLimit   = 5
	speakerMatchLimit = 5
	edgeEvidenceLimit = 2
	historyMaxRunes   = 400
	maxRecapBullets   = 3
	maxWatchPoints    = 3
)

type options struct {
	catalog       *prompts.Catalog
	metrics       *metrics.Collector
	logger        *slog.Logger
	historyWindow int
}

// Option configures a service.
type Option func(*options)

// WithCatalog replaces the embedded prompt catalog.
func WithCatalog(c *prompts.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithMetrics records operation timings.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHistoryWindow sets how many past chat messages feed the prompt.
func WithHistoryWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{historyWindow: 8}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = prompts.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func validateScope(titleID, episodeID string, currentTimeMs int64) error {
	if strings.TrimSpace(titleID) == "" {
		return invalidf("title_id is required")
	}
	if strings.TrimSpace(episodeID) == "" {
		return invalidf("episode_id is required")
	}
	if currentTimeMs < 0 {
		return invalidf("current_time_ms must be >= 0, got %d", currentTimeMs)
	}
	return nil
}

// ValidateQA checks a QA request before any work is done.
func ValidateQA(req models.QARequest) error {
	if err := validateScope(req.TitleID, req.EpisodeID, req.CurrentTimeMs); err != nil {
		return err
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return invalidf("question is required")
	}
	if n := utf8.RuneCountInString(q); n > MaxQuestionRunes {
		return invalidf("question is %d characters, max %d", n, MaxQuestionRunes)
	}
	return nil
}

func modelName(gen llm.Generator) string {
	if gen == nil {
		return models.ModelRuleBased
	}
	return gen.Model()
}

func guardedMeta(titleID, episodeID string, currentTimeMs int64, model string) models.Meta {
	return models.Meta{
		TitleID:             titleID,
		EpisodeID:           episodeID,
		CurrentTimeMs:       currentTimeMs,
		SpoilerGuardApplied: true,
		Model:               model,
	}
}

// contextBlock renders lines as "[start] speaker: text" prompt context.
func contextBlock(lines []models.DialogueLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := l.SpeakerText
		if speaker == "" {
			speaker = "?"
		}
		fmt.Fprintf(&b, "[%d] %s: %s", l.StartMs, speaker, l.Text)
	}
	return b.String()
}

func keyEvent(l models.DialogueLine) string {
	return "[" + strconv.FormatInt(l.StartMs, 10) + "] " + l.Text
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
