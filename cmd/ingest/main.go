// Package main loads the knowledge base JSONL into the vector store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/engine/ingest"
	"github.com/VoxalyAI/voxaly-mvp/engine/semantic"
	"github.com/VoxalyAI/voxaly-mvp/pkg/ollama"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		kbPath     = flag.String("kb", "data/kb.jsonl", "path to the knowledge base JSONL file")
		qdrantURL  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "voxaly_kb"), "qdrant collection name")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
	)
	flag.Parse()

	if err := run(*kbPath, *qdrantURL, *collection, *ollamaURL, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(kbPath, qdrantURL, collection, ollamaURL string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(kbPath)
	if err != nil {
		return fmt.Errorf("open kb file: %w", err)
	}
	defer f.Close()

	store, err := semantic.New(qdrantURL, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, domain.EmbeddingDim); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	embedder := ollama.New(ollama.Config{
		BaseURL: ollamaURL,
		Timeout: 30 * time.Second,
	})

	start := time.Now()
	summary, err := ingest.New(embedder, store, logger).Run(ctx, f)
	if err != nil {
		return err
	}

	logger.Info("knowledge base ingested",
		"file", kbPath,
		"total", summary.Total,
		"stored", summary.Stored,
		"skipped", summary.Skipped,
		"took", time.Since(start),
	)
	return nil
}
