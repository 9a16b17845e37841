package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/parser"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"gopkg.in/yaml.v3"
)

// IngestService populates the store from fixtures and subtitle files.
type IngestService struct {
	store store.Catalog
	jobs  *JobManager
	opts  options
}

// NewIngestService creates an ingest service. When jobs is non-nil every
// line ingest queues a chunk rebuild of the episode.
func NewIngestService(st store.Catalog, jobs *JobManager, opts ...Option) *IngestService {
	return &IngestService{store: st, jobs: jobs, opts: newOptions(opts)}
}

// FixtureLine is a subtitle line in a fixture file.
type FixtureLine struct {
	ID                       string `yaml:"id"`
	models.DialogueLineInput `yaml:",inline"`
}

// FixtureEpisode is an episode with its lines.
type FixtureEpisode struct {
	models.Episode `yaml:",inline"`
	Lines          []FixtureLine `yaml:"lines"`
}

// Fixture is a complete title: episodes, lines, characters, relations and
// relation evidence.
type Fixture struct {
	Title      models.Title            `yaml:"title"`
	Episodes   []FixtureEpisode        `yaml:"episodes"`
	Characters []models.Character      `yaml:"characters"`
	Relations  []models.Relation       `yaml:"relations"`
	Evidence   []models.EvidenceRecord `yaml:"evidence"`
}

// FixtureResult counts what LoadFixture wrote.
type FixtureResult struct {
	TitleID    string   `json:"title_id"`
	Episodes   int      `json:"episodes"`
	Lines      int      `json:"lines"`
	Characters int      `json:"characters"`
	Relations  int      `json:"relations"`
	Evidence   int      `json:"evidence"`
	EpisodeIDs []string `json:"episode_ids"`
}

// ParseFixture decodes a YAML fixture. Unknown keys are rejected.
func ParseFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidf("fixture is empty")
		}
		return nil, fmt.Errorf("%w: parse fixture: %v", ErrInvalid, err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	if fx.Title.ID == "" {
		return invalidf("fixture title.id is required")
	}
	for _, ep := range fx.Episodes {
		if ep.ID == "" {
			return invalidf("fixture episode without id")
		}
		for i, l := range ep.Lines {
			if err := validateLine(l.DialogueLineInput); err != nil {
				return fmt.Errorf("episode %s line %d: %w", ep.ID, i, err)
			}
		}
	}
	for _, c := range fx.Characters {
		if c.ID == "" || strings.TrimSpace(c.CanonicalName) == "" {
			return invalidf("fixture character needs id and name")
		}
	}
	for _, r := range fx.Relations {
		if r.ID == "" || r.FromCharacterID == "" || r.ToCharacterID == "" {
			return invalidf("fixture relation needs id, from and to")
		}
		if r.ValidToMs != nil && *r.ValidToMs < r.ValidFromMs {
			return invalidf("relation %s: valid_to_ms before valid_from_ms", r.ID)
		}
	}
	for _, ev := range fx.Evidence {
		if ev.ID == "" || ev.RelationID == "" || ev.EpisodeID == "" {
			return invalidf("fixture evidence needs id, relation_id and episode_id")
		}
	}
	return nil
}

func validateLine(in models.DialogueLineInput) error {
	if in.StartMs < 0 {
		return invalidf("start_ms must be >= 0, got %d", in.StartMs)
	}
	if in.EndMs < in.StartMs {
		return invalidf("end_ms %d before start_ms %d", in.EndMs, in.StartMs)
	}
	if strings.TrimSpace(in.Text) == "" {
		return invalidf("text is required")
	}
	return nil
}

func newLine(id, episodeID string, in models.DialogueLineInput) models.DialogueLine {
	if id == "" {
		id = uuid.NewString()
	}
	return models.DialogueLine{
		ID:                 id,
		EpisodeID:          episodeID,
		StartMs:            in.StartMs,
		EndMs:              in.EndMs,
		SpeakerText:        strings.TrimSpace(in.SpeakerText),
		Text:               strings.TrimSpace(in.Text),
		SpeakerCharacterID: in.SpeakerCharacterID,
	}
}

// LoadFixture writes a parsed fixture. Records missing a title id inherit
// the fixture title.
func (s *IngestService) LoadFixture(ctx context.Context, fx *Fixture) (*FixtureResult, error) {
	if err := s.store.UpsertTitle(ctx, fx.Title); err != nil {
		return nil, fmt.Errorf("upsert title: %w", err)
	}
	result := &FixtureResult{TitleID: fx.Title.ID, EpisodeIDs: []string{}}

	for _, ep := range fx.Episodes {
		episode := ep.Episode
		if episode.TitleID == "" {
			episode.TitleID = fx.Title.ID
		}
		if err := s.store.UpsertEpisode(ctx, episode); err != nil {
			return nil, fmt.Errorf("upsert episode %s: %w", episode.ID, err)
		}
		lines := make([]models.DialogueLine, 0, len(ep.Lines))
		for _, l := range ep.Lines {
			lines = append(lines, newLine(l.ID, episode.ID, l.DialogueLineInput))
		}
		if len(lines) > 0 {
			if err := s.store.InsertLines(ctx, lines); err != nil {
				return nil, fmt.Errorf("insert lines of %s: %w", episode.ID, err)
			}
		}
		result.Episodes++
		result.Lines += len(lines)
		result.EpisodeIDs = append(result.EpisodeIDs, episode.ID)
	}

	for _, c := range fx.Characters {
		if c.TitleID == "" {
			c.TitleID = fx.Title.ID
		}
		if err := s.store.UpsertCharacter(ctx, c); err != nil {
			return nil, fmt.Errorf("upsert character %s: %w", c.ID, err)
		}
		result.Characters++
	}
	for _, r := range fx.Relations {
		if r.TitleID == "" {
			r.TitleID = fx.Title.ID
		}
		r.Kind = models.ParseRelationKind(string(r.Kind))
		r.Confidence = min(1, max(0, r.Confidence))
		if err := s.store.UpsertRelation(ctx, r); err != nil {
			return nil, fmt.Errorf("upsert relation %s: %w", r.ID, err)
		}
		result.Relations++
	}
	for _, ev := range fx.Evidence {
		if err := s.store.InsertEvidenceRecord(ctx, ev); err != nil {
			return nil, fmt.Errorf("insert evidence %s: %w", ev.ID, err)
		}
		result.Evidence++
	}

	s.opts.logger.Info("fixture loaded",
		"title_id", result.TitleID,
		"episodes", result.Episodes,
		"lines", result.Lines,
		"characters", result.Characters,
		"relations", result.Relations)
	return result, nil
}

// IngestLines appends lines to an existing episode and queues a chunk
// rebuild for it.
func (s *IngestService) IngestLines(ctx context.Context, episodeID string, req models.IngestLinesRequest) (*models.IngestLinesResponse, error) {
	if episodeID == "" {
		return nil, invalidf("episode id is required")
	}
	if len(req.Lines) == 0 {
		return nil, invalidf("lines must not be empty")
	}
	for i, in := range req.Lines {
		if err := validateLine(in); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
	}

	episode, err := s.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("episode %s: %w", episodeID, store.ErrNotFound)
	}

	lines := make([]models.DialogueLine, 0, len(req.Lines))
	for _, in := range req.Lines {
		lines = append(lines, newLine("", episodeID, in))
	}
	if err := s.store.InsertLines(ctx, lines); err != nil {
		return nil, fmt.Errorf("insert lines: %w", err)
	}

	resp := &models.IngestLinesResponse{InsertedCount: len(lines)}
	if s.jobs != nil {
		job, err := s.jobs.StartIndex(episodeID)
		if err != nil {
			return nil, fmt.Errorf("queue index job: %w", err)
		}
		resp.QueuedIndexJobs = 1
		resp.JobID = job.ID
	}
	s.opts.logger.Info("lines ingested", "episode_id", episodeID, "lines", len(lines), "job_id", resp.JobID)
	return resp, nil
}

// IngestSRT parses an SRT subtitle file and ingests its cues.
func (s *IngestService) IngestSRT(ctx context.Context, episodeID string, r io.Reader) (*models.IngestLinesResponse, error) {
	inputs, err := parser.ParseSRT(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s.IngestLines(ctx, episodeID, models.IngestLinesRequest{Lines: inputs})
}
