package db

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

const characterFields = `record::id(id) AS id, title_id, canonical_name, description, aliases`

const relationFields = `record::id(id) AS id, title_id, from_character_id, to_character_id, relation_type,
	is_hypothesis, confidence, valid_from_time_ms, valid_to_time_ms, seq`

const evidenceFields = `record::id(id) AS id, relation_id, episode_id, representative_time_ms, summary, line_ids, created`

// GetCharacter retrieves a character by ID.
// Returns nil if not found.
func (c *Client) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	return queryOne[models.Character](ctx, c, "get character",
		`SELECT `+characterFields+` FROM type::record("character", $id)`,
		map[string]any{"id": id})
}

func (c *Client) CharactersByIDs(ctx context.Context, ids []string) ([]models.Character, error) {
	rids := recordIDs("character", ids)
	if len(rids) == 0 {
		return nil, nil
	}
	return query[models.Character](ctx, c, "characters by ids",
		`SELECT `+characterFields+` FROM $ids ORDER BY id ASC`,
		map[string]any{"ids": rids})
}

func (c *Client) CharactersByTitle(ctx context.Context, titleID string) ([]models.Character, error) {
	return query[models.Character](ctx, c, "characters by title", `
		SELECT `+characterFields+` FROM character
		WHERE title_id = $title
		ORDER BY id ASC
	`, map[string]any{"title": titleID})
}

// CharactersByAlias loads the characters of the title and matches alias
// text in Go so case folding follows strings.EqualFold.
func (c *Client) CharactersByAlias(ctx context.Context, titleID, alias string, limit int) ([]store.AliasMatch, error) {
	chars, err := query[models.Character](ctx, c, "characters by alias", `
		SELECT `+characterFields+` FROM character
		WHERE title_id = $title AND array::len(aliases) > 0
	`, map[string]any{"title": titleID})
	if err != nil {
		return nil, err
	}

	var out []store.AliasMatch
	for _, ch := range chars {
		for _, a := range ch.Aliases {
			if strings.EqualFold(a.Text, alias) {
				out = append(out, store.AliasMatch{Character: ch, Alias: a})
			}
		}
	}
	slices.SortFunc(out, func(a, b store.AliasMatch) int {
		if c := cmp.Compare(b.Alias.Confidence, a.Alias.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Character.ID, b.Character.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertCharacter creates or replaces a character with its aliases.
func (c *Client) UpsertCharacter(ctx context.Context, ch models.Character) error {
	aliases := make([]map[string]any, 0, len(ch.Aliases))
	for _, a := range ch.Aliases {
		aliases = append(aliases, map[string]any{"text": a.Text, "confidence": a.Confidence})
	}
	return c.exec(ctx, "upsert character", `
		UPSERT type::record("character", $id) CONTENT {
			title_id: $title,
			canonical_name: $name,
			description: $description,
			aliases: $aliases
		}
	`, map[string]any{
		"id":          ch.ID,
		"title":       ch.TitleID,
		"name":        ch.CanonicalName,
		"description": ch.Description,
		"aliases":     aliases,
	})
}

// =============================================================================
// RELATIONS
// =============================================================================

// GetRelation retrieves a relation by ID.
// Returns nil if not found.
func (c *Client) GetRelation(ctx context.Context, id string) (*models.Relation, error) {
	return queryOne[models.Relation](ctx, c, "get relation",
		`SELECT `+relationFields+` FROM type::record("char_relation", $id)`,
		map[string]any{"id": id})
}

// ActiveRelations returns visible relations in insertion order.
func (c *Client) ActiveRelations(ctx context.Context, f store.RelationFilter) ([]models.Relation, error) {
	kindClause := ""
	if len(f.Kinds) > 0 {
		kindClause = "AND relation_type IN $kinds"
	}
	focusClause := ""
	if f.FocusCharacterID != "" {
		focusClause = "AND (from_character_id = $focus OR to_character_id = $focus)"
	}
	sql := fmt.Sprintf(`
		SELECT %s FROM char_relation
		WHERE title_id = $title
			AND valid_from_time_ms <= $cutoff
			AND (valid_to_time_ms = NONE OR valid_to_time_ms >= $cutoff)
			AND ($hypothesis OR is_hypothesis = false)
			%s %s
		ORDER BY seq ASC
	`, relationFields, kindClause, focusClause)

	return query[models.Relation](ctx, c, "active relations", sql, map[string]any{
		"title":      f.TitleID,
		"cutoff":     f.CutoffMs,
		"hypothesis": f.IncludeHypothesis,
		"kinds":      f.Kinds,
		"focus":      f.FocusCharacterID,
	})
}

func (c *Client) RelationBetween(ctx context.Context, titleID, fromID, toID string, cutoffMs int64) (*models.Relation, error) {
	return queryOne[models.Relation](ctx, c, "relation between", `
		SELECT `+relationFields+` FROM char_relation
		WHERE title_id = $title AND from_character_id = $from AND to_character_id = $to
			AND valid_from_time_ms <= $cutoff
		ORDER BY valid_from_time_ms DESC
		LIMIT 1
	`, map[string]any{"title": titleID, "from": fromID, "to": toID, "cutoff": cutoffMs})
}

// UpsertRelation creates or replaces a relation. The first write fixes its
// position in ActiveRelations ordering.
func (c *Client) UpsertRelation(ctx context.Context, r models.Relation) error {
	validTo := "NONE"
	if r.ValidToMs != nil {
		validTo = "$valid_to"
	}
	sql := fmt.Sprintf(`
		UPSERT type::record("char_relation", $id) SET
			title_id = $title,
			from_character_id = $from,
			to_character_id = $to,
			relation_type = $kind,
			is_hypothesis = $hypothesis,
			confidence = $confidence,
			valid_from_time_ms = $valid_from,
			valid_to_time_ms = %s,
			seq = IF seq THEN seq ELSE $seq END
	`, validTo)

	vars := map[string]any{
		"id":         r.ID,
		"title":      r.TitleID,
		"from":       r.FromCharacterID,
		"to":         r.ToCharacterID,
		"kind":       string(r.Kind),
		"hypothesis": r.IsHypothesis,
		"confidence": r.Confidence,
		"valid_from": r.ValidFromMs,
		"seq":        time.Now().UnixNano(),
	}
	if r.ValidToMs != nil {
		vars["valid_to"] = *r.ValidToMs
	}
	return c.exec(ctx, "upsert relation", sql, vars)
}

// =============================================================================
// EVIDENCE
// =============================================================================

func (c *Client) RelationEvidence(ctx context.Context, relationID, episodeID string, cutoffMs int64, limit int) ([]models.EvidenceRecord, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM relation_evidence
		WHERE relation_id = $relation AND episode_id = $episode AND representative_time_ms <= $cutoff
		ORDER BY representative_time_ms DESC, created ASC %s
	`, evidenceFields, limitClause(limit))

	return query[models.EvidenceRecord](ctx, c, "relation evidence", sql, map[string]any{
		"relation": relationID,
		"episode":  episodeID,
		"cutoff":   cutoffMs,
		"limit":    limit,
	})
}

func (c *Client) LatestRelationEvidence(ctx context.Context, relationID string, cutoffMs int64) (*models.EvidenceRecord, error) {
	return queryOne[models.EvidenceRecord](ctx, c, "latest relation evidence", `
		SELECT `+evidenceFields+` FROM relation_evidence
		WHERE relation_id = $relation AND representative_time_ms <= $cutoff
		ORDER BY representative_time_ms DESC, created ASC
		LIMIT 1
	`, map[string]any{"relation": relationID, "cutoff": cutoffMs})
}

// InsertEvidenceRecord stores a record, generating an ID when missing.
func (c *Client) InsertEvidenceRecord(ctx context.Context, rec models.EvidenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	lineIDs := rec.LineIDs
	if lineIDs == nil {
		lineIDs = []string{}
	}
	return c.exec(ctx, "insert evidence", `
		UPSERT type::record("relation_evidence", $id) SET
			relation_id = $relation,
			episode_id = $episode,
			representative_time_ms = $time,
			summary = $summary,
			line_ids = $line_ids
	`, map[string]any{
		"id":       rec.ID,
		"relation": rec.RelationID,
		"episode":  rec.EpisodeID,
		"time":     rec.RepresentativeTimeMs,
		"summary":  rec.Summary,
		"line_ids": lineIDs,
	})
}
