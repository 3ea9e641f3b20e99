package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northfieldai/ragcore/internal/background"
	"github.com/northfieldai/ragcore/internal/config"
	"github.com/northfieldai/ragcore/internal/embedding"
	"github.com/northfieldai/ragcore/internal/format"
	"github.com/northfieldai/ragcore/internal/generation"
	"github.com/northfieldai/ragcore/internal/httpapi"
	"github.com/northfieldai/ragcore/internal/orchestrator"
	"github.com/northfieldai/ragcore/internal/ratelimit"
	"github.com/northfieldai/ragcore/internal/retrieval"
	"github.com/northfieldai/ragcore/internal/store"
	"github.com/northfieldai/ragcore/internal/websearch"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	vectorStore, err := store.New(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Embedding.Dim)
	if err != nil {
		logger.Error("failed to init vector store", "error", err)
		os.Exit(1)
	}
	defer vectorStore.Close()
	logger.Info("vector store ready")

	limiter := ratelimit.New(cfg.Embedding.RateLimitPerSecond)
	embedder, err := embedding.New(cfg.Embedding.APIKey, cfg.Embedding.Model, limiter, logger)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	retriever := retrieval.New(embedder, vectorStore, retrieval.Config{
		DocK:             cfg.Retrieval.DocK,
		MsgK:             cfg.Retrieval.MsgK,
		GlobalK:          cfg.Retrieval.GlobalK,
		Threshold:        cfg.Retrieval.Threshold,
		GlobalMinQuality: cfg.Retrieval.GlobalMinQuality,
		Deadline:         cfg.RetrievalDeadline(),
		EnforceIsolation: cfg.Session.EnforceIsolation,
	}, logger)

	formatter := format.New(cfg.Context.MaxChars)

	chatProvider, err := generation.NewProvider(cfg.Embedding.APIKey, cfg.Generation.Model)
	if err != nil {
		logger.Error("failed to create chat provider", "error", err)
		os.Exit(1)
	}

	var webSearchProvider *websearch.Client
	if cfg.WebSearch.Enabled {
		webSearchProvider = websearch.New(cfg.WebSearch.BaseURL, cfg.WebSearch.APIKey)
	}

	var generator *generation.Generator
	if webSearchProvider != nil {
		generator = generation.New(chatProvider, webSearchProvider, cfg.Generation.MaxTokens, cfg.WebSearch.ForceTriggers, logger)
	} else {
		generator = generation.New(chatProvider, nil, cfg.Generation.MaxTokens, cfg.WebSearch.ForceTriggers, logger)
	}

	bg := background.New(embedder, vectorStore, logger)

	orch := orchestrator.New(retriever, formatter, generator, bg, logger)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Orchestrator: orch,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // long enough for SSE streaming
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
