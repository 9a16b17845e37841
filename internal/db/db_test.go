//go:build integration

// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDB        *Client
	testCfg       Config
	testContainer testcontainers.Container
)

// testDimension matches the char-code embedder used by the fixtures.
const testDimension = 4

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testCfg = Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: AuthRoot,
	}
	testDB, err = NewClient(ctx, testCfg, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx, testDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// freshStore wipes every table so each contract subtest starts empty.
func freshStore(t *testing.T) store.Store {
	t.Helper()
	require.NoError(t, testDB.WipeData(context.Background()))
	return testDB
}

func TestContract(t *testing.T) {
	storetest.Run(t, freshStore)
}

func TestSearchChunks(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	storetest.Seed(t, s)

	require.NoError(t, s.ReplaceChunks(ctx, "e1", []models.Chunk{
		{ID: "near", EpisodeID: "e1", StartMs: 1000, EndMs: 1900, Text: "near", LineIDs: []string{"l1"}, Embedding: []float32{1, 0, 0, 0}},
		{ID: "far", EpisodeID: "e1", StartMs: 2000, EndMs: 2900, Text: "far", LineIDs: []string{"l2"}, Embedding: []float32{0, 0, 0, 1}},
		{ID: "future", EpisodeID: "e1", StartMs: 9000, EndMs: 9900, Text: "future", LineIDs: []string{"l3"}, Embedding: []float32{1, 0, 0, 0}},
	}))

	got, err := testDB.SearchChunks(ctx, "e1", 5000, []float32{0.9, 0.1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "far", got[1].ID)

	_, err = testDB.SearchChunks(ctx, "e1", 5000, nil, 2)
	assert.ErrorIs(t, err, store.ErrVectorUnavailable)
}

func TestReplaceChunksWithoutEmbedding(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)

	require.NoError(t, s.ReplaceChunks(ctx, "e9", []models.Chunk{
		{EpisodeID: "e9", StartMs: 0, EndMs: 10, Text: "plain", LineIDs: []string{"x"}},
	}))
	chunks, err := s.EpisodeChunks(ctx, "e9")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].ID)
	assert.Empty(t, chunks[0].Embedding)
}

func TestUpsertRelationKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	storetest.Seed(t, s)

	r1, err := s.GetRelation(ctx, "r1")
	require.NoError(t, err)
	r1.Confidence = 0.9
	require.NoError(t, s.UpsertRelation(ctx, *r1))

	active, err := s.ActiveRelations(ctx, store.RelationFilter{TitleID: "t1", CutoffMs: 2000, IncludeHypothesis: true})
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "r1", active[0].ID)
	assert.InDelta(t, 0.9, active[0].Confidence, 1e-9)
}
