// Package main provides the entry point for the spoilerguard MCP server over
// stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/server"
	"github.com/raphaelgruber/spoilerguard/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("spoilerguard-mcp starting",
		"version", version,
		"store", cfg.StoreBackend,
		"embed_provider", cfg.EmbedProvider,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing backends")
		_ = a.Close(context.Background())
	}()

	srv := server.NewMCP(version, logger)
	srv.Setup()

	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		QA:     a.QA,
		Graph:  a.Graph,
		Recap:  a.Recap,
		Entity: a.Entity,
		Logger: logger,
	})

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
