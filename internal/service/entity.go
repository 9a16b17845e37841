package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// EntityReader is the storage EntityService reads from.
type EntityReader interface {
	store.LineReader
	store.CharacterReader
}

// EntityService answers character questions bounded by the cutoff: cards and
// mention resolution.
type EntityService struct {
	store     EntityReader
	sanitizer *rag.Sanitizer
	opts      options
}

// NewEntityService creates an entity service.
func NewEntityService(st EntityReader, opts ...Option) *EntityService {
	return &EntityService{
		store:     st,
		sanitizer: rag.NewSanitizer(st),
		opts:      newOptions(opts),
	}
}

// Card describes a character from the most recent lines at or before the
// cutoff that name it. Unknown characters report store.ErrNotFound.
func (s *EntityService) Card(ctx context.Context, characterID, episodeID string, cutoffMs int64) (*models.CharacterCardResponse, error) {
	if characterID == "" {
		return nil, invalidf("character id is required")
	}
	if episodeID == "" {
		return nil, invalidf("episode_id is required")
	}
	if cutoffMs < 0 {
		return nil, invalidf("current_time_ms must be >= 0, got %d", cutoffMs)
	}

	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("get character: %w", err)
	}
	if character == nil {
		return nil, fmt.Errorf("character %s: %w", characterID, store.ErrNotFound)
	}

	recent, err := s.store.RecentLines(ctx, episodeID, cutoffMs, cardLineWindow)
	if err != nil {
		return nil, fmt.Errorf("recent lines: %w", err)
	}

	names := []string{strings.ToLower(character.CanonicalName)}
	for _, a := range character.AliasTexts() {
		names = append(names, strings.ToLower(a))
	}

	var matched []models.DialogueLine
	for _, l := range recent {
		hay := strings.ToLower(l.SpeakerText + " " + l.Text)
		if slices.ContainsFunc(names, func(n string) bool { return n != "" && strings.Contains(hay, n) }) {
			matched = append(matched, l)
			if len(matched) == cardMatchLimit {
				break
			}
		}
	}
	slices.Reverse(matched)

	evidences, warnings, err := s.sanitizer.Sanitize(ctx, rag.BuildEvidence(matched, models.MaxEvidenceLines), episodeID, cutoffMs)
	if err != nil {
		return nil, err
	}

	cat := s.opts.catalog
	summary := models.CardSummary{KeyEvents: []string{}}
	if len(matched) > 0 {
		summary.Text = fmt.Sprintf(cat.Character.Summary, character.CanonicalName)
		for _, l := range matched[:min(cardKeyEvents, len(matched))] {
			summary.KeyEvents = append(summary.KeyEvents, keyEvent(l))
		}
	} else {
		summary.Text = fmt.Sprintf(cat.Character.Missing, character.CanonicalName)
		warnings = append(warnings, rag.InsufficientEvidence(cat.Character.Insufficient))
	}

	return &models.CharacterCardResponse{
		Meta: models.CardMeta{
			CharacterID:         character.ID,
			EpisodeID:           episodeID,
			CurrentTimeMs:       cutoffMs,
			SpoilerGuardApplied: true,
		},
		Character: models.CardCharacter{
			ID:            character.ID,
			TitleID:       character.TitleID,
			CanonicalName: character.CanonicalName,
			Description:   character.Description,
			Aliases:       nonNil(character.AliasTexts()),
		},
		Summary:   summary,
		Evidences: nonNil(evidences),
		Warnings:  rag.DedupeWarnings(warnings),
	}, nil
}
