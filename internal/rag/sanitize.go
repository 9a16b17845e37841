package rag

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// Warning messages.
const (
	msgLineNotFound             = "존재하지 않는 근거 라인이 제거되었습니다."
	msgEpisodeMismatch          = "다른 회차 근거가 제거되었습니다."
	msgTimeGuardViolation       = "현재 시점 이후 근거가 제거되었습니다."
	msgAssertiveWithoutEvidence = "근거가 부족해 단정 표현을 완화했습니다."
	msgEvidenceInsufficient     = "현재 시점까지의 자막에서 질문에 대한 직접 근거를 찾지 못했어요."
)

// Sanitizer is the trust boundary for evidence. It re-reads every cited line
// and keeps only lines that exist, belong to the episode and start at or
// before the cutoff.
type Sanitizer struct {
	lines store.LineReader
}

func NewSanitizer(lines store.LineReader) *Sanitizer {
	return &Sanitizer{lines: lines}
}

// Sanitize validates evidences against the store. Surviving lines are
// rewritten from the stored record and an item's representative time becomes
// its first survivor's start. Items without survivors are dropped. Only the
// first models.MaxEvidenceLines lines of an item are considered.
//
// A storage error aborts the whole call; it is never read as a missing line.
// Sanitizing an already sanitized result changes nothing and adds no
// warnings.
func (s *Sanitizer) Sanitize(ctx context.Context, evidences []models.Evidence, episodeID string, cutoffMs int64) ([]models.Evidence, []models.Warning, error) {
	var (
		out      []models.Evidence
		warnings []models.Warning
	)
	for _, ev := range evidences {
		candidates := ev.Lines
		if len(candidates) > models.MaxEvidenceLines {
			candidates = candidates[:models.MaxEvidenceLines]
		}

		clean := make([]models.EvidenceLine, 0, len(candidates))
		for _, cand := range candidates {
			line, err := s.lines.GetLine(ctx, cand.LineID)
			if err != nil {
				return nil, nil, fmt.Errorf("sanitize evidence %s: %w", ev.ID, err)
			}
			switch {
			case line == nil:
				warnings = append(warnings, models.Warning{Code: models.WarnLineNotFound, Message: msgLineNotFound})
			case line.EpisodeID != episodeID:
				warnings = append(warnings, models.Warning{Code: models.WarnEpisodeMismatch, Message: msgEpisodeMismatch})
			case line.StartMs > cutoffMs:
				warnings = append(warnings, models.Warning{Code: models.WarnTimeGuardViolation, Message: msgTimeGuardViolation})
			default:
				clean = append(clean, models.EvidenceLineFrom(*line))
			}
		}
		if len(clean) == 0 {
			continue
		}

		ev.Lines = clean
		ev.RepresentativeTimeMs = clean[0].StartMs
		out = append(out, ev)
	}
	return out, warnings, nil
}
