package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// Resolve maps a free-text mention to characters of the title. Exact alias
// matches win; otherwise the speakers of recent lines containing the mention
// are matched to canonical names by frequency.
func (s *EntityService) Resolve(ctx context.Context, req models.ResolveEntityRequest) (*models.ResolveEntityResponse, error) {
	if err := validateScope(req.TitleID, req.EpisodeID, req.CurrentTimeMs); err != nil {
		return nil, err
	}
	mention := strings.TrimSpace(req.MentionText)
	if mention == "" {
		return nil, invalidf("mention_text is required")
	}
	cat := s.opts.catalog

	matches, err := s.store.CharactersByAlias(ctx, req.TitleID, mention, aliasMatchLimit)
	if err != nil {
		return nil, fmt.Errorf("characters by alias: %w", err)
	}
	candidates := make([]models.EntityCandidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, models.EntityCandidate{
			CharacterID:   m.Character.ID,
			CanonicalName: m.Character.CanonicalName,
			Reason:        fmt.Sprintf(cat.Resolve.AliasReason, m.Alias.Text),
			Confidence:    min(1, max(0, m.Alias.Confidence)),
		})
	}

	if len(candidates) == 0 {
		candidates, err = s.speakerCandidates(ctx, req, mention)
		if err != nil {
			return nil, err
		}
	}

	var warnings []models.Warning
	if len(candidates) == 0 {
		warnings = append(warnings, models.Warning{Code: models.WarnEntityNotResolved, Message: cat.Resolve.NotResolved})
	}

	return &models.ResolveEntityResponse{
		Meta:        guardedMeta(req.TitleID, req.EpisodeID, req.CurrentTimeMs, ""),
		MentionText: req.MentionText,
		Candidates:  candidates,
		Warnings:    nonNil(warnings),
	}, nil
}

func (s *EntityService) speakerCandidates(ctx context.Context, req models.ResolveEntityRequest, mention string) ([]models.EntityCandidate, error) {
	lines, err := s.store.LinesMentioning(ctx, req.EpisodeID, req.CurrentTimeMs, mention, mentionLineLimit)
	if err != nil {
		return nil, fmt.Errorf("lines mentioning: %w", err)
	}

	type speakerCount struct {
		speaker string
		freq    int
		first   int
	}
	counts := make(map[string]*speakerCount)
	for i, l := range lines {
		if l.SpeakerText == "" {
			continue
		}
		if c, ok := counts[l.SpeakerText]; ok {
			c.freq++
			continue
		}
		counts[l.SpeakerText] = &speakerCount{speaker: l.SpeakerText, freq: 1, first: i}
	}
	if len(counts) == 0 {
		return []models.EntityCandidate{}, nil
	}
	ranked := make([]*speakerCount, 0, len(counts))
	for _, c := range counts {
		ranked = append(ranked, c)
	}
	slices.SortFunc(ranked, func(a, b *speakerCount) int {
		if c := cmp.Compare(b.freq, a.freq); c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})
	ranked = ranked[:min(speakerMatchLimit, len(ranked))]

	characters, err := s.store.CharactersByTitle(ctx, req.TitleID)
	if err != nil {
		return nil, fmt.Errorf("characters by title: %w", err)
	}

	candidates := []models.EntityCandidate{}
	for _, sc := range ranked {
		i := slices.IndexFunc(characters, func(c models.Character) bool {
			return strings.EqualFold(c.CanonicalName, sc.speaker)
		})
		if i < 0 {
			continue
		}
		candidates = append(candidates, models.EntityCandidate{
			CharacterID:   characters[i].ID,
			CanonicalName: characters[i].CanonicalName,
			Reason:        s.opts.catalog.Resolve.SpeakerReason,
			Confidence:    min(0.7, 0.35+0.08*float64(sc.freq)),
		})
	}
	return candidates, nil
}
