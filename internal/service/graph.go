package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// GraphReader is the storage GraphService reads from.
type GraphReader interface {
	store.LineReader
	store.CharacterReader
	store.RelationReader
	store.EvidenceReader
}

// GraphService resolves the relationship graph visible at a cutoff.
type GraphService struct {
	store     GraphReader
	sanitizer *rag.Sanitizer
	opts      options
}

// NewGraphService creates a graph service.
func NewGraphService(st GraphReader, opts ...Option) *GraphService {
	return &GraphService{
		store:     st,
		sanitizer: rag.NewSanitizer(st),
		opts:      newOptions(opts),
	}
}

// Graph returns the characters and relations whose validity window covers
// the cutoff, each edge carrying only sanitized evidence.
func (s *GraphService) Graph(ctx context.Context, req models.GraphRequest) (*models.GraphResponse, error) {
	if err := validateScope(req.TitleID, req.EpisodeID, req.CurrentTimeMs); err != nil {
		return nil, err
	}
	includeHypothesis := req.IncludeHypothesis == nil || *req.IncludeHypothesis

	relations, err := s.store.ActiveRelations(ctx, store.RelationFilter{
		TitleID:           req.TitleID,
		CutoffMs:          req.CurrentTimeMs,
		IncludeHypothesis: includeHypothesis,
		Kinds:             req.RelationKinds,
		FocusCharacterID:  req.FocusCharacterID,
	})
	if err != nil {
		return nil, fmt.Errorf("active relations: %w", err)
	}
	relations = latestPerPair(relations, req.CurrentTimeMs)

	ids := make([]string, 0, 2*len(relations))
	for _, r := range relations {
		ids = append(ids, r.FromCharacterID, r.ToCharacterID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	characters, err := s.store.CharactersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}
	byID := make(map[string]models.Character, len(characters))
	for _, c := range characters {
		byID[c.ID] = c
	}

	var (
		edges    = []models.GraphEdge{}
		warnings []models.Warning
		used     = make(map[string]struct{})
	)
	for _, r := range relations {
		_, fromOK := byID[r.FromCharacterID]
		_, toOK := byID[r.ToCharacterID]
		if !fromOK || !toOK {
			s.opts.logger.Debug("relation endpoint missing, edge dropped", "relation_id", r.ID)
			continue
		}
		evidences, edgeWarnings, err := s.edgeEvidence(ctx, r.ID, req.EpisodeID, req.CurrentTimeMs)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, edgeWarnings...)
		if len(evidences) == 0 {
			warnings = append(warnings, rag.InsufficientEvidence(fmt.Sprintf(s.opts.catalog.Graph.EdgeInsufficient, r.ID)))
		}
		edges = append(edges, models.EdgeFrom(r, evidences))
		used[r.FromCharacterID] = struct{}{}
		used[r.ToCharacterID] = struct{}{}
	}

	nodes := make([]models.GraphNode, 0, len(used))
	for id := range used {
		c := byID[id]
		nodes = append(nodes, models.GraphNode{
			ID:          c.ID,
			Label:       c.CanonicalName,
			Description: c.Description,
			Aliases:     nonNil(c.AliasTexts()),
		})
	}
	slices.SortFunc(nodes, func(a, b models.GraphNode) int { return cmp.Compare(a.ID, b.ID) })

	return &models.GraphResponse{
		Meta:     guardedMeta(req.TitleID, req.EpisodeID, req.CurrentTimeMs, ""),
		Nodes:    nodes,
		Edges:    edges,
		Warnings: rag.DedupeWarnings(warnings),
	}, nil
}

// Relation returns a single relation if its window covers the cutoff.
// Evidence comes from the episode of its newest record at or before the
// cutoff. Invisible or unknown relations report store.ErrNotFound.
func (s *GraphService) Relation(ctx context.Context, relationID string, cutoffMs int64) (*models.RelationDetailResponse, error) {
	if relationID == "" {
		return nil, invalidf("relation id is required")
	}
	if cutoffMs < 0 {
		return nil, invalidf("current_time_ms must be >= 0, got %d", cutoffMs)
	}

	rel, err := s.store.GetRelation(ctx, relationID)
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	if rel == nil || !rel.VisibleAt(cutoffMs) {
		return nil, fmt.Errorf("relation %s: %w", relationID, store.ErrNotFound)
	}

	latest, err := s.store.LatestRelationEvidence(ctx, relationID, cutoffMs)
	if err != nil {
		return nil, fmt.Errorf("latest relation evidence: %w", err)
	}

	var (
		evidences []models.Evidence
		warnings  []models.Warning
	)
	if latest != nil {
		evidences, warnings, err = s.edgeEvidence(ctx, relationID, latest.EpisodeID, cutoffMs)
		if err != nil {
			return nil, err
		}
	}
	if len(evidences) == 0 {
		warnings = append(warnings, rag.InsufficientEvidence(s.opts.catalog.Graph.RelationInsufficient))
	}

	return &models.RelationDetailResponse{
		Relation: models.EdgeFrom(*rel, evidences),
		Warnings: rag.DedupeWarnings(warnings),
	}, nil
}

func (s *GraphService) edgeEvidence(ctx context.Context, relationID, episodeID string, cutoffMs int64) ([]models.Evidence, []models.Warning, error) {
	records, err := s.store.RelationEvidence(ctx, relationID, episodeID, cutoffMs, edgeEvidenceLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("relation evidence: %w", err)
	}
	candidates := make([]models.Evidence, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, rag.EvidenceFromRecord(rec))
	}
	return s.sanitizer.Sanitize(ctx, candidates, episodeID, cutoffMs)
}

// latestPerPair keeps, for each (from, to) pair with several visible
// relations, the one that started last. Ties go to the higher confidence,
// then the smaller id. Survivors keep their input order.
func latestPerPair(relations []models.Relation, cutoffMs int64) []models.Relation {
	type pair struct{ from, to string }
	best := make(map[pair]models.Relation, len(relations))
	for _, r := range relations {
		if !r.VisibleAt(cutoffMs) {
			continue
		}
		k := pair{r.FromCharacterID, r.ToCharacterID}
		cur, ok := best[k]
		if !ok || supersedes(r, cur) {
			best[k] = r
		}
	}
	out := make([]models.Relation, 0, len(best))
	for _, r := range relations {
		if b, ok := best[pair{r.FromCharacterID, r.ToCharacterID}]; ok && b.ID == r.ID {
			out = append(out, r)
		}
	}
	return out
}

func supersedes(a, b models.Relation) bool {
	if a.ValidFromMs != b.ValidFromMs {
		return a.ValidFromMs > b.ValidFromMs
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID < b.ID
}
