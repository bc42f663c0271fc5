// Package ingest builds the knowledge base: it reads KB entries from JSONL,
// embeds them, and upserts the vectors into the semantic store. Runs as a
// batch job (cmd/ingest), never in the request path.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/VoxalyAI/voxaly-mvp/engine/semantic"
	"github.com/VoxalyAI/voxaly-mvp/pkg/fn"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EmbedRateLimit caps embedding calls per second so a bulk ingest does not
// starve the live pipeline sharing the same Ollama instance.
const EmbedRateLimit = rate.Limit(10)

// Embedder computes the vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store receives embedded KB records.
type Store interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByDocID(ctx context.Context, docID string) error
}

// Entry is one KB document from the JSONL export: the question users ask,
// the canonical answer, and the intent label the decision policy can trust.
type Entry struct {
	DocID    string `json:"doc_id"`
	Intent   string `json:"intent"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SnippetLen bounds the stored snippet; prompts re-truncate on their side.
const SnippetLen = 200

// Summary reports an ingest run.
type Summary struct {
	Total   int
	Stored  int
	Skipped int
}

// Ingestor drives the validate → embed → store stage chain.
type Ingestor struct {
	embedder Embedder
	store    Store
	limiter  *rate.Limiter
	logger   *slog.Logger
	embed    fn.Stage[Entry, semantic.VectorRecord]
}

// New creates an Ingestor.
func New(embedder Embedder, store Store, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	ing := &Ingestor{
		embedder: embedder,
		store:    store,
		limiter:  rate.NewLimiter(EmbedRateLimit, 1),
		logger:   logger,
	}
	ing.embed = fn.TracedStage("ingest.embed", ing.embedEntry)
	return ing
}

// Run ingests all JSONL entries from r. Invalid lines are skipped with a
// log; embed and store failures abort the run, since a half-built KB is
// worse than a stale one.
func (ing *Ingestor) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum.Total++

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			ing.logger.Warn("skipping malformed KB line", "line", sum.Total, "err", err)
			sum.Skipped++
			continue
		}
		if err := validate(entry); err != nil {
			ing.logger.Warn("skipping invalid KB entry", "doc_id", entry.DocID, "err", err)
			sum.Skipped++
			continue
		}

		record, err := ing.embed(ctx, entry).Unwrap()
		if err != nil {
			return sum, fmt.Errorf("ingest: embed %s: %w", entry.DocID, err)
		}

		// Re-ingest replaces, it never duplicates.
		if err := ing.store.DeleteByDocID(ctx, entry.DocID); err != nil {
			return sum, fmt.Errorf("ingest: clear %s: %w", entry.DocID, err)
		}
		storeRes := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
			return fn.FromPair(struct{}{}, ing.store.Upsert(ctx, []semantic.VectorRecord{record}))
		})
		if _, err := storeRes.Unwrap(); err != nil {
			return sum, fmt.Errorf("ingest: store %s: %w", entry.DocID, err)
		}
		sum.Stored++
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("ingest: read: %w", err)
	}

	ing.logger.Info("ingest finished", "total", sum.Total, "stored", sum.Stored, "skipped", sum.Skipped)
	return sum, nil
}

func (ing *Ingestor) embedEntry(ctx context.Context, entry Entry) fn.Result[semantic.VectorRecord] {
	if err := ing.limiter.Wait(ctx); err != nil {
		return fn.Err[semantic.VectorRecord](err)
	}
	vec, err := ing.embedder.Embed(ctx, embedText(entry))
	if err != nil {
		return fn.Err[semantic.VectorRecord](err)
	}
	return fn.Ok(semantic.VectorRecord{
		ID:        uuid.NewString(),
		Embedding: vec,
		Payload: map[string]any{
			semantic.PayloadDocID:       entry.DocID,
			semantic.PayloadLabelIntent: entry.Intent,
			semantic.PayloadSnippet:     snippet(entry.Answer),
			semantic.PayloadContent:     entry.Answer,
		},
	})
}

// embedText is what gets vectorised: question plus answer, so both the
// phrasing and the content pull similar queries toward the entry.
func embedText(e Entry) string {
	return e.Question + "\n" + e.Answer
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= SnippetLen {
		return s
	}
	return string(r[:SnippetLen])
}

func validate(e Entry) error {
	switch {
	case e.DocID == "":
		return fmt.Errorf("missing doc_id")
	case e.Question == "" && e.Answer == "":
		return fmt.Errorf("entry %s has neither question nor answer", e.DocID)
	default:
		return nil
	}
}
