package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/ragdoc/internal/catalog/postgres"
	"github.com/knoguchi/ragdoc/internal/chunker"
	"github.com/knoguchi/ragdoc/internal/config"
	"github.com/knoguchi/ragdoc/internal/embedding"
	"github.com/knoguchi/ragdoc/internal/jobs"
	"github.com/knoguchi/ragdoc/internal/llm"
	"github.com/knoguchi/ragdoc/internal/pipeline"
	"github.com/knoguchi/ragdoc/internal/retriever"
	"github.com/knoguchi/ragdoc/internal/server"
)

func main() {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run ragd", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("starting ragd", "http_port", cfg.HTTPPort, "environment", cfg.Environment)

	embedder := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.EmbeddingModel,
	})

	// The catalog store needs the embedding dimension up front to size the
	// Qdrant collection, but OllamaEmbedder only learns its dimension from a
	// live call. Probe once with a throwaway string before wiring storage.
	if _, err := embedder.Embed(ctx, "dimension probe"); err != nil {
		return fmt.Errorf("probing embedding dimension: %w", err)
	}
	dimension := embedder.Dimension()
	slog.Info("discovered embedding dimension", "model", cfg.EmbeddingModel, "dimension", dimension)

	store, err := postgres.New(ctx, cfg.DatabaseURL, cfg.QdrantGRPCURL, dimension)
	if err != nil {
		return fmt.Errorf("connecting to catalog store: %w", err)
	}
	defer store.Close()
	slog.Info("connected to catalog store")

	tokenizer, err := chunker.NewBPETokenizer()
	if err != nil {
		return fmt.Errorf("loading tokenizer: %w", err)
	}

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.DefaultLLM),
	)

	p := pipeline.New(store, tokenizer, embedder, pipeline.Config{
		ChunkSize:    cfg.DefaultChunkSize,
		ChunkOverlap: cfg.DefaultChunkOverlap,
	})
	jobRunner := jobs.New(store, p, slog.Default(), cfg.WorkerPoolSize)

	if n, err := jobRunner.SweepInterrupted(ctx); err != nil {
		return fmt.Errorf("sweeping interrupted jobs: %w", err)
	} else if n > 0 {
		slog.Info("marked interrupted jobs failed at startup", "count", n)
	}

	retr := retriever.New(store, embedder)

	httpServer := server.New(server.Config{
		Port:                cfg.HTTPPort,
		Logger:              slog.Default(),
		AllowedOrigins:      []string{"*"},
		Store:               store,
		Jobs:                jobRunner,
		Retriever:           retr,
		LLM:                 llmClient,
		DefaultLLM:          cfg.DefaultLLM,
		DefaultTopK:         cfg.DefaultTopK,
		DefaultVectorWeight: cfg.DefaultVectorWeight,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}

	slog.Info("ragd stopped")
	return nil
}
