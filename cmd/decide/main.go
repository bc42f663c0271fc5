// Package main runs one query through the decision pipeline and prints the
// result. Useful for poking at the rules catalog without a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/decision"
	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/engine/feedback"
	"github.com/VoxalyAI/voxaly-mvp/engine/pipeline"
	"github.com/VoxalyAI/voxaly-mvp/engine/rules"
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
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	var (
		callContext = flag.String("context", "", "prior call transcript, if any")
		mode        = flag.String("mode", "rules", `decide strategy: "rules" or "generative"`)
		topK        = flag.Int("k", pipeline.DefaultTopK, "retrieval depth")
		qdrantURL   = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "voxaly_kb"), "qdrant collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
		showTrace   = flag.Bool("trace", false, "print the pipeline trace too")
	)
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: decide [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(query, *callContext, *mode, *topK, *qdrantURL, *collection, *ollamaURL, *showTrace, logger); err != nil {
		fmt.Fprintln(os.Stderr, "decide:", err)
		os.Exit(1)
	}
}

func run(query, callContext, mode string, topK int, qdrantURL, collection, ollamaURL string, showTrace bool, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := semantic.New(qdrantURL, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	llm := ollama.New(ollama.Config{BaseURL: ollamaURL, Timeout: 30 * time.Second})

	var decider pipeline.Decider = decision.NewRulesPolicy(rules.DefaultCatalog())
	if mode == "generative" {
		decider = decision.NewGenerativeEngine(llm, decision.DefaultGenOptions(), logger)
	}

	opts := pipeline.DefaultOptions()
	opts.TopK = topK
	opts.Mode = mode
	pipe := pipeline.New(store, decider, feedback.Discard{}, opts, logger)

	embedding, err := llm.Embed(ctx, rules.CombinedText(callContext, query))
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	dec, trace, err := pipe.Run(ctx, domain.DecisionRequest{
		TextQuery:   query,
		TextContext: callContext,
		Embedding:   embedding,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dec); err != nil {
		return err
	}
	if showTrace {
		return enc.Encode(trace)
	}
	return nil
}
