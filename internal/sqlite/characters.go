package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

const characterColumns = "id, title_id, canonical_name, description"

const relationColumns = "id, title_id, from_character_id, to_character_id, relation_type, is_hypothesis, confidence, valid_from_time_ms, valid_to_time_ms"

const evidenceColumns = "id, relation_id, episode_id, representative_time_ms, summary, line_ids_json"

// queryCharacters loads characters, then their aliases in a second query
// since the single connection cannot interleave result sets.
func (s *Store) queryCharacters(ctx context.Context, op, query string, args ...any) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out []models.Character
	for rows.Next() {
		var c models.Character
		if err := rows.Scan(&c.ID, &c.TitleID, &c.CanonicalName, &c.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return out, nil
	}

	aliases, err := s.aliasesFor(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range out {
		out[i].Aliases = aliases[out[i].ID]
	}
	return out, nil
}

func (s *Store) aliasesFor(ctx context.Context, chars []models.Character) (map[string][]models.Alias, error) {
	ids := make([]string, 0, len(chars))
	for _, c := range chars {
		ids = append(ids, c.ID)
	}
	args := dedupe(ids)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT character_id, alias_text, confidence
		FROM character_aliases WHERE character_id IN (%s)
		ORDER BY character_id, position`, placeholders(len(args))), args...)
	if err != nil {
		return nil, fmt.Errorf("aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Alias)
	for rows.Next() {
		var (
			id string
			a  models.Alias
		)
		if err := rows.Scan(&id, &a.Text, &a.Confidence); err != nil {
			return nil, fmt.Errorf("aliases: scan: %w", err)
		}
		out[id] = append(out[id], a)
	}
	return out, rows.Err()
}

func (s *Store) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	chars, err := s.queryCharacters(ctx, "get character", "SELECT "+characterColumns+" FROM characters WHERE id = ?", id)
	if err != nil || len(chars) == 0 {
		return nil, err
	}
	return &chars[0], nil
}

func (s *Store) CharactersByIDs(ctx context.Context, ids []string) ([]models.Character, error) {
	args := dedupe(ids)
	if len(args) == 0 {
		return nil, nil
	}
	return s.queryCharacters(ctx, "characters by ids", fmt.Sprintf(`SELECT %s FROM characters
		WHERE id IN (%s) ORDER BY id ASC`, characterColumns, placeholders(len(args))), args...)
}

func (s *Store) CharactersByTitle(ctx context.Context, titleID string) ([]models.Character, error) {
	return s.queryCharacters(ctx, "characters by title", `SELECT `+characterColumns+` FROM characters
		WHERE title_id = ? ORDER BY id ASC`, titleID)
}

// CharactersByAlias matches on the Go-folded alias column.
func (s *Store) CharactersByAlias(ctx context.Context, titleID, alias string, limit int) ([]store.AliasMatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.character_id, a.alias_text, a.confidence
		FROM character_aliases a JOIN characters c ON c.id = a.character_id
		WHERE c.title_id = ? AND a.alias_fold = ?
		ORDER BY a.confidence DESC, a.character_id ASC LIMIT ?`,
		titleID, strings.ToLower(alias), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("characters by alias: %w", err)
	}
	type hit struct {
		id    string
		alias models.Alias
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.alias.Text, &h.alias.Confidence); err != nil {
			rows.Close()
			return nil, fmt.Errorf("characters by alias: scan: %w", err)
		}
		hits = append(hits, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("characters by alias: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	chars, err := s.CharactersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Character, len(chars))
	for _, c := range chars {
		byID[c.ID] = c
	}

	out := make([]store.AliasMatch, 0, len(hits))
	for _, h := range hits {
		if c, ok := byID[h.id]; ok {
			out = append(out, store.AliasMatch{Character: c, Alias: h.alias})
		}
	}
	return out, nil
}

// UpsertCharacter replaces the character row and its alias list.
func (s *Store) UpsertCharacter(ctx context.Context, c models.Character) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO characters (`+characterColumns+`) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title_id = excluded.title_id,
				canonical_name = excluded.canonical_name, description = excluded.description`,
			c.ID, c.TitleID, c.CanonicalName, c.Description); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM character_aliases WHERE character_id = ?", c.ID); err != nil {
			return err
		}
		for i, a := range c.Aliases {
			if _, err := tx.ExecContext(ctx, `INSERT INTO character_aliases
				(character_id, position, alias_text, alias_fold, confidence) VALUES (?, ?, ?, ?, ?)`,
				c.ID, i, a.Text, strings.ToLower(a.Text), a.Confidence); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert character: %w", err)
	}
	return nil
}

// =============================================================================
// RELATIONS
// =============================================================================

func (s *Store) queryRelations(ctx context.Context, op, query string, args ...any) ([]models.Relation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Relation
	for rows.Next() {
		var (
			r       models.Relation
			kind    string
			hyp     int
			validTo sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.TitleID, &r.FromCharacterID, &r.ToCharacterID, &kind, &hyp, &r.Confidence, &r.ValidFromMs, &validTo); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		r.Kind = models.RelationKind(kind)
		r.IsHypothesis = hyp != 0
		if validTo.Valid {
			r.ValidToMs = &validTo.Int64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) GetRelation(ctx context.Context, id string) (*models.Relation, error) {
	rels, err := s.queryRelations(ctx, "get relation", "SELECT "+relationColumns+" FROM character_relations WHERE id = ?", id)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return &rels[0], nil
}

// ActiveRelations returns visible relations in insertion order.
func (s *Store) ActiveRelations(ctx context.Context, f store.RelationFilter) ([]models.Relation, error) {
	var (
		where = []string{
			"title_id = ?",
			"valid_from_time_ms <= ?",
			"(valid_to_time_ms IS NULL OR valid_to_time_ms >= ?)",
		}
		args = []any{f.TitleID, f.CutoffMs, f.CutoffMs}
	)
	if !f.IncludeHypothesis {
		where = append(where, "is_hypothesis = 0")
	}
	if len(f.Kinds) > 0 {
		where = append(where, fmt.Sprintf("relation_type IN (%s)", placeholders(len(f.Kinds))))
		for _, k := range f.Kinds {
			args = append(args, string(k))
		}
	}
	if f.FocusCharacterID != "" {
		where = append(where, "(from_character_id = ? OR to_character_id = ?)")
		args = append(args, f.FocusCharacterID, f.FocusCharacterID)
	}

	query := fmt.Sprintf("SELECT %s FROM character_relations WHERE %s ORDER BY seq ASC",
		relationColumns, strings.Join(where, " AND "))
	return s.queryRelations(ctx, "active relations", query, args...)
}

func (s *Store) RelationBetween(ctx context.Context, titleID, fromID, toID string, cutoffMs int64) (*models.Relation, error) {
	rels, err := s.queryRelations(ctx, "relation between", `SELECT `+relationColumns+` FROM character_relations
		WHERE title_id = ? AND from_character_id = ? AND to_character_id = ? AND valid_from_time_ms <= ?
		ORDER BY valid_from_time_ms DESC, seq ASC LIMIT 1`, titleID, fromID, toID, cutoffMs)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return &rels[0], nil
}

// UpsertRelation creates or replaces a relation, keeping its original
// insertion position.
func (s *Store) UpsertRelation(ctx context.Context, r models.Relation) error {
	var validTo sql.NullInt64
	if r.ValidToMs != nil {
		validTo = sql.NullInt64{Int64: *r.ValidToMs, Valid: true}
	}
	hyp := 0
	if r.IsHypothesis {
		hyp = 1
	}
	_, err := s.exec(ctx, `INSERT INTO character_relations (`+relationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title_id = excluded.title_id,
			from_character_id = excluded.from_character_id,
			to_character_id = excluded.to_character_id,
			relation_type = excluded.relation_type,
			is_hypothesis = excluded.is_hypothesis,
			confidence = excluded.confidence,
			valid_from_time_ms = excluded.valid_from_time_ms,
			valid_to_time_ms = excluded.valid_to_time_ms`,
		r.ID, r.TitleID, r.FromCharacterID, r.ToCharacterID, string(r.Kind), hyp, r.Confidence, r.ValidFromMs, validTo)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}

// =============================================================================
// EVIDENCE
// =============================================================================

func (s *Store) queryEvidence(ctx context.Context, op, query string, args ...any) ([]models.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.EvidenceRecord
	for rows.Next() {
		var (
			rec     models.EvidenceRecord
			lineIDs string
		)
		if err := rows.Scan(&rec.ID, &rec.RelationID, &rec.EpisodeID, &rec.RepresentativeTimeMs, &rec.Summary, &lineIDs); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if rec.LineIDs, err = decodeStrings(lineIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) RelationEvidence(ctx context.Context, relationID, episodeID string, cutoffMs int64, limit int) ([]models.EvidenceRecord, error) {
	return s.queryEvidence(ctx, "relation evidence", `SELECT `+evidenceColumns+` FROM relation_evidence
		WHERE relation_id = ? AND episode_id = ? AND representative_time_ms <= ?
		ORDER BY representative_time_ms DESC, seq ASC LIMIT ?`, relationID, episodeID, cutoffMs, limitArg(limit))
}

func (s *Store) LatestRelationEvidence(ctx context.Context, relationID string, cutoffMs int64) (*models.EvidenceRecord, error) {
	recs, err := s.queryEvidence(ctx, "latest relation evidence", `SELECT `+evidenceColumns+` FROM relation_evidence
		WHERE relation_id = ? AND representative_time_ms <= ?
		ORDER BY representative_time_ms DESC, seq ASC LIMIT 1`, relationID, cutoffMs)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) InsertEvidenceRecord(ctx context.Context, rec models.EvidenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	lineIDs := rec.LineIDs
	if lineIDs == nil {
		lineIDs = []string{}
	}
	raw, err := encodeJSON(lineIDs)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	if _, err := s.exec(ctx, `INSERT OR REPLACE INTO relation_evidence (`+evidenceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RelationID, rec.EpisodeID, rec.RepresentativeTimeMs, rec.Summary, raw); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}
