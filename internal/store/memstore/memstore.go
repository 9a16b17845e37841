// Package memstore is an in-process implementation of store.Store used for
// tests, demos and the "memory" backend. It has no vector index.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// Store keeps every table in memory. All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	titles     map[string]models.Title
	episodes   map[string]models.Episode
	lines      map[string]models.DialogueLine
	chunks     map[string][]models.Chunk
	characters map[string]models.Character
	relations  []models.Relation
	evidence   []models.EvidenceRecord
	sessions   []models.ChatSession
	messages   []models.ChatMessage
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		titles:     make(map[string]models.Title),
		episodes:   make(map[string]models.Episode),
		lines:      make(map[string]models.DialogueLine),
		chunks:     make(map[string][]models.Chunk),
		characters: make(map[string]models.Character),
		now:        time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error { return nil }

func byStartDesc(a, b models.DialogueLine) int {
	if c := cmp.Compare(b.StartMs, a.StartMs); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func byStartAsc(a, b models.DialogueLine) int {
	if c := cmp.Compare(a.StartMs, b.StartMs); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func limitLines(lines []models.DialogueLine, limit int) []models.DialogueLine {
	if limit > 0 && len(lines) > limit {
		return lines[:limit]
	}
	return lines
}

// =============================================================================
// LINES
// =============================================================================

func (s *Store) GetLine(ctx context.Context, id string) (*models.DialogueLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) LinesByIDs(ctx context.Context, episodeID string, ids []string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	var out []models.DialogueLine
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		l, ok := s.lines[id]
		if !ok || l.EpisodeID != episodeID || l.StartMs > cutoffMs {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, byStartDesc)
	return limitLines(out, limit), nil
}

func (s *Store) RecentLines(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.DialogueLine, error) {
	return s.filterLines(episodeID, cutoffMs, limit, func(models.DialogueLine) bool { return true }), nil
}

func (s *Store) LinesMentioning(ctx context.Context, episodeID string, cutoffMs int64, mention string, limit int) ([]models.DialogueLine, error) {
	needle := strings.ToLower(mention)
	return s.filterLines(episodeID, cutoffMs, limit, func(l models.DialogueLine) bool {
		return strings.Contains(strings.ToLower(l.Text), needle)
	}), nil
}

func (s *Store) filterLines(episodeID string, cutoffMs int64, limit int, keep func(models.DialogueLine) bool) []models.DialogueLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DialogueLine
	for _, l := range s.lines {
		if l.EpisodeID == episodeID && l.StartMs <= cutoffMs && keep(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, byStartDesc)
	return limitLines(out, limit)
}

func (s *Store) EpisodeLines(ctx context.Context, episodeID string) ([]models.DialogueLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DialogueLine
	for _, l := range s.lines {
		if l.EpisodeID == episodeID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, byStartAsc)
	return out, nil
}

// =============================================================================
// CHUNKS
// =============================================================================

func (s *Store) ScanChunks(ctx context.Context, episodeID string, cutoffMs int64, limit int) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Chunk
	for _, c := range s.chunks[episodeID] {
		if c.StartMs <= cutoffMs {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Chunk) int { return cmp.Compare(b.StartMs, a.StartMs) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EpisodeChunks(ctx context.Context, episodeID string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.chunks[episodeID])
	slices.SortStableFunc(out, func(a, b models.Chunk) int { return cmp.Compare(a.StartMs, b.StartMs) })
	return out, nil
}

func (s *Store) ReplaceChunks(ctx context.Context, episodeID string, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[episodeID] = slices.Clone(chunks)
	return nil
}

// =============================================================================
// CHARACTERS
// =============================================================================

func (s *Store) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) CharactersByIDs(ctx context.Context, ids []string) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Character
	for _, id := range ids {
		if c, ok := s.characters[id]; ok && !slices.ContainsFunc(out, func(x models.Character) bool { return x.ID == id }) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Character) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) CharactersByTitle(ctx context.Context, titleID string) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Character
	for _, c := range s.characters {
		if c.TitleID == titleID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Character) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) CharactersByAlias(ctx context.Context, titleID, alias string, limit int) ([]store.AliasMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.AliasMatch
	for _, c := range s.characters {
		if c.TitleID != titleID {
			continue
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a.Text, alias) {
				out = append(out, store.AliasMatch{Character: c, Alias: a})
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

// =============================================================================
// RELATIONS & EVIDENCE
// =============================================================================

func (s *Store) GetRelation(ctx context.Context, id string) (*models.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.relations {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Store) ActiveRelations(ctx context.Context, f store.RelationFilter) ([]models.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Relation
	for _, r := range s.relations {
		if r.TitleID != f.TitleID || !r.VisibleAt(f.CutoffMs) {
			continue
		}
		if r.IsHypothesis && !f.IncludeHypothesis {
			continue
		}
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
			continue
		}
		if f.FocusCharacterID != "" && !r.Touches(f.FocusCharacterID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) RelationBetween(ctx context.Context, titleID, fromID, toID string, cutoffMs int64) (*models.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Relation
	for i := range s.relations {
		r := s.relations[i]
		if r.TitleID != titleID || r.FromCharacterID != fromID || r.ToCharacterID != toID || r.ValidFromMs > cutoffMs {
			continue
		}
		if best == nil || r.ValidFromMs > best.ValidFromMs {
			best = &r
		}
	}
	return best, nil
}

func (s *Store) RelationEvidence(ctx context.Context, relationID, episodeID string, cutoffMs int64, limit int) ([]models.EvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EvidenceRecord
	for _, rec := range s.evidence {
		if rec.RelationID == relationID && rec.EpisodeID == episodeID && rec.RepresentativeTimeMs <= cutoffMs {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b models.EvidenceRecord) int {
		return cmp.Compare(b.RepresentativeTimeMs, a.RepresentativeTimeMs)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LatestRelationEvidence(ctx context.Context, relationID string, cutoffMs int64) (*models.EvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.EvidenceRecord
	for i := range s.evidence {
		rec := s.evidence[i]
		if rec.RelationID != relationID || rec.RepresentativeTimeMs > cutoffMs {
			continue
		}
		if best == nil || rec.RepresentativeTimeMs > best.RepresentativeTimeMs {
			best = &rec
		}
	}
	return best, nil
}

// =============================================================================
// CHAT
// =============================================================================

func (s *Store) findSessionLocked(titleID, episodeID, userID string) int {
	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if sess.TitleID == titleID && sess.EpisodeID == episodeID && sess.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *Store) GetOrCreateSession(ctx context.Context, titleID, episodeID, userID string, currentTimeMs int64) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.findSessionLocked(titleID, episodeID, userID); i >= 0 {
		s.sessions[i].CurrentTimeMs = currentTimeMs
		sess := s.sessions[i]
		return &sess, nil
	}
	sess := models.ChatSession{
		ID:            uuid.New().String(),
		TitleID:       titleID,
		EpisodeID:     episodeID,
		UserID:        userID,
		CurrentTimeMs: currentTimeMs,
		CreatedAt:     s.now(),
	}
	s.sessions = append(s.sessions, sess)
	return &sess, nil
}

func (s *Store) FindSession(ctx context.Context, titleID, episodeID, userID string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.findSessionLocked(titleID, episodeID, userID); i >= 0 {
		sess := s.sessions[i]
		return &sess, nil
	}
	return nil, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatMessage
	for i := len(s.messages) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.messages[i].SessionID == sessionID {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatMessage
	for _, m := range s.messages {
		if limit > 0 && len(out) >= limit {
			break
		}
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) DeleteHistory(ctx context.Context, titleID, episodeID, userID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{})
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.TitleID == titleID && sess.EpisodeID == episodeID && sess.UserID == userID {
			doomed[sess.ID] = struct{}{}
			continue
		}
		kept = append(kept, sess)
	}
	s.sessions = kept

	deleted := 0
	msgs := s.messages[:0]
	for _, m := range s.messages {
		if _, ok := doomed[m.SessionID]; ok {
			deleted++
			continue
		}
		msgs = append(msgs, m)
	}
	s.messages = msgs
	return deleted, len(doomed), nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) UpsertTitle(ctx context.Context, t models.Title) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[t.ID] = t
	return nil
}

func (s *Store) UpsertEpisode(ctx context.Context, e models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[e.ID] = e
	return nil
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) InsertLines(ctx context.Context, lines []models.DialogueLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		s.lines[l.ID] = l
	}
	return nil
}

func (s *Store) UpsertCharacter(ctx context.Context, c models.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = c
	return nil
}

func (s *Store) UpsertRelation(ctx context.Context, r models.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.relations {
		if s.relations[i].ID == r.ID {
			s.relations[i] = r
			return nil
		}
	}
	s.relations = append(s.relations, r)
	return nil
}

func (s *Store) InsertEvidenceRecord(ctx context.Context, rec models.EvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	s.evidence = append(s.evidence, rec)
	return nil
}
