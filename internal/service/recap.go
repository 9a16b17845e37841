package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/llm"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// RecapService summarizes the story up to the playback position.
type RecapService struct {
	retriever *rag.Retriever
	resolver  *rag.Resolver
	sanitizer *rag.Sanitizer
	generator llm.Generator
	opts      options
}

// NewRecapService creates a recap service. A nil generator recaps rule-based.
func NewRecapService(lines store.LineReader, retriever *rag.Retriever, gen llm.Generator, opts ...Option) *RecapService {
	return &RecapService{
		retriever: retriever,
		resolver:  rag.NewResolver(lines),
		sanitizer: rag.NewSanitizer(lines),
		generator: gen,
		opts:      newOptions(opts),
	}
}

func normalizeRecap(req *models.RecapRequest) error {
	if err := validateScope(req.TitleID, req.EpisodeID, req.CurrentTimeMs); err != nil {
		return err
	}
	switch req.Preset {
	case "":
		req.Preset = models.RecapOneMin
	case models.RecapTwentySec, models.RecapOneMin, models.RecapThreeMin:
	default:
		return invalidf("unknown recap preset %q", req.Preset)
	}
	switch req.Mode {
	case "":
		req.Mode = models.RecapGeneral
	case models.RecapGeneral, models.RecapCharacterFocused, models.RecapConflictFocused:
	default:
		return invalidf("unknown recap mode %q", req.Mode)
	}
	return nil
}

// Recap builds a recap from the lines most relevant to the mode's seed query.
func (s *RecapService) Recap(ctx context.Context, req models.RecapRequest) (*models.RecapResponse, error) {
	if err := normalizeRecap(&req); err != nil {
		return nil, err
	}
	cat := s.opts.catalog
	lang := models.ParseLanguage(string(req.Language))
	style := models.ParseResponseStyle(string(req.ResponseStyle))

	chunks, err := s.retriever.Retrieve(ctx, req.EpisodeID, req.CurrentTimeMs, cat.RecapSeed(req.Mode), 0)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolver.Resolve(ctx, req.EpisodeID, req.CurrentTimeMs, chunks, rag.DefaultMaxLines)
	if err != nil {
		return nil, err
	}
	evidences, warnings, err := s.sanitizer.Sanitize(ctx, rag.BuildEvidence(lines, models.MaxEvidenceLines), req.EpisodeID, req.CurrentTimeMs)
	if err != nil {
		return nil, err
	}

	var draft recapDraft
	if s.generator != nil && len(lines) > 0 {
		user := fmt.Sprintf("title_id=%s\nepisode_id=%s\ncurrent_time_ms=%d\npreset=%s\nmode=%s\n", req.TitleID, req.EpisodeID, req.CurrentTimeMs, req.Preset, req.Mode) +
			fmt.Sprintf("language=%s\nresponse_style=%s\n", lang, style) +
			fmt.Sprintf("Output requirement: All natural-language fields in JSON must be written in %s. Do not mix languages.\n", cat.LanguageName(lang)) +
			fmt.Sprintf("Style requirement: %s\n", cat.RecapStyleInstruction(style)) +
			"context:\n" + contextBlock(lines)
		result, err := s.generator.CompleteJSON(ctx, cat.System.Recap, user)
		if err != nil {
			s.opts.logger.Warn("recap generation failed, using rule-based recap", "error", err, "episode_id", req.EpisodeID)
		} else {
			draft = coerceRecap(result)
		}
	}

	if draft.text == "" {
		texts := make([]string, 0, len(lines))
		for _, l := range lines {
			if t := strings.TrimSpace(l.Text); t != "" {
				texts = append(texts, t)
			}
		}
		draft.text = models.TruncateRunes(strings.Join(texts, " "), cat.Recap.MaxRunes)
		if draft.text == "" {
			draft.text = cat.RecapEmpty(style)
		}
		if len(draft.bullets) == 0 {
			for _, l := range lines[:min(maxRecapBullets, len(lines))] {
				draft.bullets = append(draft.bullets, l.Text)
			}
		}
		if len(draft.watchPoints) == 0 {
			draft.watchPoints = cat.Recap.WatchPoints
		}
	}

	if len(evidences) == 0 {
		warnings = append(warnings, rag.InsufficientEvidence(cat.Recap.Insufficient))
	}

	return &models.RecapResponse{
		Meta: guardedMeta(req.TitleID, req.EpisodeID, req.CurrentTimeMs, modelName(s.generator)),
		Recap: models.Recap{
			Text:    draft.text,
			Bullets: nonNil(draft.bullets[:min(maxRecapBullets, len(draft.bullets))]),
		},
		WatchPoints: nonNil(draft.watchPoints[:min(maxWatchPoints, len(draft.watchPoints))]),
		Evidences:   nonNil(evidences),
		Warnings:    rag.DedupeWarnings(warnings),
	}, nil
}
