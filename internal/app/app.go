// Package app wires configuration into the storage, cache, model and
// service layers. It serves as dependency injection for the server, the MCP
// binary and the CLI's direct mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/spoilerguard/internal/cache"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/db"
	"github.com/raphaelgruber/spoilerguard/internal/embedding"
	"github.com/raphaelgruber/spoilerguard/internal/llm"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/parser"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/service"
	"github.com/raphaelgruber/spoilerguard/internal/sqlite"
	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
)

// App holds every long-lived dependency.
type App struct {
	Store     store.Store
	Embedder  embedding.Embedder
	Generator llm.Generator
	Chunks    *cache.ChunkCache
	Retriever *rag.Retriever
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	QA      *service.QAService
	Graph   *service.GraphService
	Entity  *service.EntityService
	Recap   *service.RecapService
	Ingest  *service.IngestService
	Indexer *service.ChunkIndexer
	Jobs    *service.JobManager

	closers []func(context.Context) error
}

// New connects the configured backends and builds the services.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	embedder, err := embedding.New(embedding.Config{
		Provider:     embedding.ProviderType(cfg.EmbedProvider),
		Model:        cfg.EmbedModel,
		Dimension:    cfg.EmbedDimension,
		VoyageAPIKey: cfg.VoyageAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OllamaHost:   cfg.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	a := &App{Embedder: embedder, Metrics: mc, Logger: logger}

	if err := a.openStore(ctx, cfg, embedder.Dimension()); err != nil {
		return nil, err
	}

	backend, err := a.openCache(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if backend != nil {
		a.Chunks = cache.NewChunkCache(backend, cfg.CacheTTL, logger)
	}

	gen, err := llm.NewGenerator(ctx, cfg, llm.WithMetrics(mc), llm.WithLogger(logger))
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("llm: %w", err)
	}
	a.Generator = gen

	a.build(cfg)
	logger.Info("app ready",
		"backend", cfg.StoreBackend,
		"cache", cfg.CacheBackend,
		"llm", a.QA.ModelName(),
		"embedder", embedder.Model())
	return a, nil
}

// NewWithStore builds the services over an existing store with no cache and
// no generator. Used by tests and the memory backend.
func NewWithStore(st store.Store, cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Store:    st,
		Embedder: embedding.NewCharCode(),
		Metrics:  metrics.NewCollector(),
		Logger:   logger,
	}
	a.build(cfg)
	return a
}

func (a *App) openStore(ctx context.Context, cfg config.Config, dimension int) error {
	switch cfg.StoreBackend {
	case config.StoreSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("surrealdb: %w", err)
		}
		if err := client.InitSchema(ctx, dimension); err != nil {
			_ = client.Close(ctx)
			return err
		}
		a.Store = client
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		a.Store = s
	case config.StoreMemory, "":
		a.Store = memstore.New()
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
	a.closers = append(a.closers, a.Store.Close)
	return nil
}

func (a *App) openCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case cache.BackendRedis:
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return r.Close() })
		return r, nil
	case cache.BackendLRU, "":
		return cache.NewLRU(cfg.CacheLRUSize, cfg.CacheTTL), nil
	case cache.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.CacheBackend)
	}
}

func (a *App) build(cfg config.Config) {
	retrieverOpts := []rag.RetrieverOption{
		rag.WithEmbedder(a.Embedder),
		rag.WithMetrics(a.Metrics),
		rag.WithLogger(a.Logger),
		rag.WithTopK(cfg.RetrievalTopK),
	}
	if vs, ok := a.Store.(store.VectorSearcher); ok {
		retrieverOpts = append(retrieverOpts, rag.WithVectorSearch(vs))
	}
	if a.Chunks != nil {
		retrieverOpts = append(retrieverOpts, rag.WithChunkCache(a.Chunks))
	}
	a.Retriever = rag.NewRetriever(a.Store, retrieverOpts...)

	opts := []service.Option{
		service.WithMetrics(a.Metrics),
		service.WithLogger(a.Logger),
		service.WithHistoryWindow(cfg.ChatHistoryWindow),
	}
	a.QA = service.NewQAService(a.Store, a.Retriever, a.Generator, opts...)
	a.Graph = service.NewGraphService(a.Store, opts...)
	a.Entity = service.NewEntityService(a.Store, opts...)
	a.Recap = service.NewRecapService(a.Store, a.Retriever, a.Generator, opts...)

	chunking := parser.DefaultChunkConfig()
	if cfg.ChunkSizeLines > 0 {
		chunking.SizeLines = cfg.ChunkSizeLines
	}
	a.Indexer = service.NewChunkIndexer(a.Store, a.Embedder, a.Chunks, chunking, opts...)
	a.Jobs = service.NewJobManager(cfg.IndexConcurrency, a.Indexer, a.Logger)
	a.Ingest = service.NewIngestService(a.Store, a.Jobs, opts...)
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// WipeData deletes all stored data. Only the SurrealDB backend supports it.
func (a *App) WipeData(ctx context.Context) error {
	client, ok := a.Store.(*db.Client)
	if !ok {
		return errors.New("wipe is only supported by the surrealdb backend")
	}
	return client.WipeData(ctx)
}

// Ping checks the store connection. Stores without a connection always pass.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.Store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
