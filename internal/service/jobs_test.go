package service

import (
	"context"
	"testing"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestJobManagerIndexesEpisodes(t *testing.T) {
	st := seededStore(t)
	jm := NewJobManager(2, NewChunkIndexer(st, nil, nil, parser.DefaultChunkConfig()), nil)

	job, err := jm.StartIndex("e1", "e2", "e1", "")
	require.NoError(t, err)
	assert.Equal(t, JobTypeIndex, job.Type)
	assert.Equal(t, 2, job.Total)
	assert.Len(t, job.ID, 8)

	done, err := jm.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, done.Status)
	assert.Equal(t, 2, done.Progress)
	assert.True(t, done.Finished())
	require.NotNil(t, done.CompletedAt)
	require.Len(t, done.Results, 2)
	assert.Equal(t, "e1", done.Results[0].EpisodeID)
	assert.Equal(t, 3, done.Results[0].LinesIndexed)
	assert.Equal(t, "e2", done.Results[1].EpisodeID)
	assert.Empty(t, done.Errors)

	chunks, err := st.EpisodeChunks(context.Background(), "e2")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestJobManagerAllEpisodesFail(t *testing.T) {
	jm := NewJobManager(1, NewChunkIndexer(seededStore(t), failingEmbedder{}, nil, parser.DefaultChunkConfig()), nil)

	job, err := jm.StartIndex("e1", "e2")
	require.NoError(t, err)

	done, err := jm.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "boom")
	assert.Empty(t, done.Results)
}

func TestJobManagerLookup(t *testing.T) {
	jm := NewJobManager(0, NewChunkIndexer(seededStore(t), nil, nil, parser.DefaultChunkConfig()), nil)
	assert.Equal(t, 2, jm.Concurrency())

	_, err := jm.StartIndex()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = jm.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = jm.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	first, err := jm.StartIndex("e1")
	require.NoError(t, err)
	_, err = jm.Wait(waitCtx(t), first.ID)
	require.NoError(t, err)

	second, err := jm.StartIndex("e2")
	require.NoError(t, err)
	_, err = jm.Wait(waitCtx(t), second.ID)
	require.NoError(t, err)

	jobs := jm.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
}
