package rag

import (
	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const summaryRunes = 60

// BuildEvidence wraps the first maxPerEvidence lines into a single evidence
// item. It returns nil for no lines.
func BuildEvidence(lines []models.DialogueLine, maxPerEvidence int) []models.Evidence {
	if len(lines) == 0 {
		return nil
	}
	n := min(len(lines), max(1, maxPerEvidence))
	selected := lines[:n]

	evLines := make([]models.EvidenceLine, 0, n)
	for _, l := range selected {
		evLines = append(evLines, models.EvidenceLineFrom(l))
	}
	return []models.Evidence{{
		ID:                   uuid.NewString(),
		RepresentativeTimeMs: selected[0].StartMs,
		Summary:              models.TruncateRunes(selected[0].Text, summaryRunes),
		Lines:                evLines,
	}}
}

// EvidenceFromRecord turns a stored relation evidence record into a
// candidate evidence item. Only line ids are carried; the sanitizer fills in
// times and text from the authoritative lines.
func EvidenceFromRecord(rec models.EvidenceRecord) models.Evidence {
	ev := models.Evidence{
		ID:                   rec.ID,
		RepresentativeTimeMs: rec.RepresentativeTimeMs,
		Summary:              rec.Summary,
	}
	for _, id := range rec.LineIDs {
		if len(ev.Lines) == models.MaxEvidenceLines {
			break
		}
		ev.Lines = append(ev.Lines, models.EvidenceLine{LineID: id})
	}
	return ev
}
