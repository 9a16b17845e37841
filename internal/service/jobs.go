package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobTypeIndex rebuilds episode chunks.
const JobTypeIndex = "index"

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Job represents a background index job over one or more episodes.
type Job struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Status      JobStatus            `json:"status"`
	EpisodeIDs  []string             `json:"episode_ids"`
	Progress    int                  `json:"progress"`
	Total       int                  `json:"total"`
	Results     []models.IndexResult `json:"results,omitempty"`
	Errors      []string             `json:"errors,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`

	mu   sync.RWMutex
	done chan struct{}
}

// JobManager tracks and runs background index jobs. Jobs live in memory
// only and are lost on restart.
type JobManager struct {
	jobs        map[string]*Job
	mu          sync.RWMutex
	concurrency int
	indexer     *ChunkIndexer
	logger      *slog.Logger
}

// NewJobManager creates a job manager running at most concurrency episode
// rebuilds at once.
func NewJobManager(concurrency int, indexer *ChunkIndexer, logger *slog.Logger) *JobManager {
	if concurrency <= 0 {
		concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		concurrency: concurrency,
		indexer:     indexer,
		logger:      logger,
	}
}

// Concurrency returns the configured concurrency level.
func (m *JobManager) Concurrency() int {
	return m.concurrency
}

// StartIndex queues a rebuild of the given episodes and returns at once.
func (m *JobManager) StartIndex(episodeIDs ...string) (*Job, error) {
	var unique []string
	for _, id := range episodeIDs {
		if id != "" && !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	episodeIDs = unique
	if len(episodeIDs) == 0 {
		return nil, invalidf("at least one episode id is required")
	}

	job := &Job{
		ID:         uuid.New().String()[:8], // Short ID for convenience
		Type:       JobTypeIndex,
		Status:     JobStatusPending,
		EpisodeIDs: episodeIDs,
		Total:      len(episodeIDs),
		StartedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	m.logger.Info("job created", "job_id", job.ID, "type", job.Type, "episodes", len(episodeIDs))

	go func() {
		defer close(job.done)
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("job goroutine panicked", "job_id", job.ID, "panic", r)
				m.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()
		m.run(context.Background(), job)
	}()
	return job, nil
}

func (m *JobManager) run(ctx context.Context, job *Job) {
	m.setRunning(job)

	var (
		mu      sync.Mutex
		results []models.IndexResult
		errs    []string
		wg      sync.WaitGroup
	)
	work := make(chan string, len(job.EpisodeIDs))
	for range min(m.concurrency, len(job.EpisodeIDs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for episodeID := range work {
				result, err := m.indexer.Rebuild(ctx, episodeID, nil)
				mu.Lock()
				if err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", episodeID, err))
				} else {
					results = append(results, *result)
				}
				mu.Unlock()
				m.advance(job)
			}
		}()
	}
	for _, id := range job.EpisodeIDs {
		work <- id
	}
	close(work)
	wg.Wait()

	slices.SortFunc(results, func(a, b models.IndexResult) int {
		return slices.Index(job.EpisodeIDs, a.EpisodeID) - slices.Index(job.EpisodeIDs, b.EpisodeID)
	})
	if len(results) == 0 {
		m.Fail(job, fmt.Errorf("all %d episodes failed: %v", len(errs), errs))
		return
	}
	m.Complete(job, results, errs)
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return jobs
}

// Wait blocks until the job finishes or ctx ends.
func (m *JobManager) Wait(ctx context.Context, id string) (Job, error) {
	job, err := m.GetJob(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-job.done:
		return job.Snapshot(), nil
	case <-ctx.Done():
		return job.Snapshot(), ctx.Err()
	}
}

func (m *JobManager) setRunning(job *Job) {
	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
}

func (m *JobManager) advance(job *Job) {
	job.mu.Lock()
	job.Progress++
	current, total := job.Progress, job.Total
	job.mu.Unlock()
	m.logger.Debug("job progress", "job_id", job.ID, "progress", fmt.Sprintf("%d/%d", current, total))
}

// Complete marks job as completed. Per-episode failures are kept alongside
// the successful results.
func (m *JobManager) Complete(job *Job, results []models.IndexResult, episodeErrors []string) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Results = results
	job.Errors = episodeErrors
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("job completed", "job_id", job.ID, "episodes", len(results), "errors", len(episodeErrors))
}

// Fail marks job as failed with error.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		EpisodeIDs:  slices.Clone(j.EpisodeIDs),
		Progress:    j.Progress,
		Total:       j.Total,
		Results:     slices.Clone(j.Results),
		Errors:      slices.Clone(j.Errors),
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
