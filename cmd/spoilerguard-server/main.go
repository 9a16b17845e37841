// Package main provides the HTTP server for spoilerguard: the REST API, the
// streaming QA endpoints and the MCP streamable HTTP endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/server"
	"github.com/raphaelgruber/spoilerguard/internal/tools"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Dual output: stderr text + file JSON
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("starting spoilerguard-server",
		"version", version,
		"port", cfg.ServerPort,
		"store", cfg.StoreBackend,
		"cache", cfg.CacheBackend,
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("failed to close app", "error", err)
		}
	}()

	if *wipeDB || os.Getenv("SPOILERGUARD_WIPE_DB") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := a.WipeData(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	mcpSrv := server.NewMCP(version, logger)
	mcpSrv.Setup()
	tools.RegisterAll(mcpSrv.MCPServer(), &tools.Dependencies{
		QA:     a.QA,
		Graph:  a.Graph,
		Recap:  a.Recap,
		Entity: a.Entity,
		Logger: logger,
	})

	srv := server.New(a, server.WithLogger(logger), server.WithMCPHandler(mcpSrv.Handler()))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      srv.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("REST API available", "url", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort))
		logger.Info("MCP endpoint available", "url", fmt.Sprintf("http://localhost:%d/mcp", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
