// Package router implements the knowledge-base query router: given a bare
// customer question it answers from the KB when the match is trustworthy and
// hands off to a human advisor otherwise. It shares the vector store with
// the decision pipeline but makes a simpler, self-contained verdict.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

// Routing thresholds. Absolute KB relevance scores run low, so the router
// works on relative floors rather than an ambitious cutoff.
var (
	// MinRelevance filters pure noise: below this the KB found nothing real.
	MinRelevance = 0.10
	// OffTopicRelevance marks a best match too weak to anchor the query in
	// the domain when no domain vocabulary is present either.
	OffTopicRelevance = 0.16
)

// Verdict values for RouteResult.Action.
const (
	ActionRAGResponse  = "rag_response"
	ActionHumanHandoff = "human_handoff"
)

// HandoffResponse is the spoken reply when the router defers to a human.
const HandoffResponse = "Je transfère votre demande à un conseiller pour une réponse personnalisée."

// complexKeywords force a handoff regardless of KB relevance: disputes and
// legal matters are never answered from canned documents.
var complexKeywords = []string{
	"urgent", "réclamation", "litige", "problème", "erreur",
	"contentieux", "avocat", "juridique", "plainte", "insatisfait",
	"mécontent", "scandale", "arnaque", "escroquerie",
}

// domainKeywords anchor a query in the insurance/banking domain.
var domainKeywords = []string{
	"assurance", "contrat", "client", "compte", "espace", "rachat",
	"versement", "épargne", "banque", "coordonnées", "sinistre",
	"prévoyance", "bénéficiaire", "capital", "rente", "fiscalité",
	"impôt", "relevé", "document", "réclamation", "modification",
}

// offTopicKeywords flag queries clearly outside the domain.
var offTopicKeywords = []string{
	"quantique", "spatial", "alien", "robot", "ordinateur", "jeu",
	"voyage temps", "extraterrestre", "fusée", "astronomie",
}

// Embedder turns a query into the vector the KB is indexed by.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the KB lookup the router answers from: ranked hits plus the
// stored document content, index-aligned.
type Searcher interface {
	SearchContent(ctx context.Context, embedding []float32, k int) ([]domain.RetrievalHit, []string, error)
}

// RouteResult is the router's verdict.
type RouteResult struct {
	Action     string               `json:"action"`
	Response   string               `json:"response"`
	Confidence float64              `json:"confidence"`
	Reason     string               `json:"reason"`
	Hits       []domain.RetrievalHit `json:"documents,omitempty"`
}

// Router decides between answering from the knowledge base and handing the
// call to a human.
type Router struct {
	embedder Embedder
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// New creates a Router. topK <= 0 defaults to 3.
func New(embedder Embedder, searcher Searcher, topK int, logger *slog.Logger) *Router {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{embedder: embedder, searcher: searcher, topK: topK, logger: logger}
}

// Route runs the verdict chain: complexity keywords, KB lookup, off-topic
// check, relevance floor. The first matching rule wins.
func (r *Router) Route(ctx context.Context, query string) (RouteResult, error) {
	if containsAny(query, complexKeywords) {
		return r.handoff("query contains keywords requiring human assistance", nil), nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return RouteResult{}, fmt.Errorf("router: embed query: %w", err)
	}

	hits, contents, err := r.searcher.SearchContent(ctx, embedding, r.topK)
	if err != nil {
		return RouteResult{}, fmt.Errorf("router: search: %v: %w", err, domain.ErrRetrievalUnavailable)
	}

	if len(hits) == 0 {
		return r.handoff("no matching documents found in knowledge base", nil), nil
	}

	best := hits[0].Score
	if r.offTopic(query, best) {
		return r.handoff("query appears to be outside the insurance/banking domain", capHits(hits, 2)), nil
	}

	if best >= MinRelevance {
		r.logger.Info("router answered from KB", "doc_id", hits[0].DocID, "score", best)
		return RouteResult{
			Action:     ActionRAGResponse,
			Response:   contents[0],
			Confidence: best,
			Reason:     "document found in knowledge base",
			Hits:       hits,
		}, nil
	}
	return r.handoff(fmt.Sprintf("very low confidence (%.2f < %.2f)", best, MinRelevance), capHits(hits, 2)), nil
}

// offTopic reports whether the query sits outside the domain: an explicit
// off-topic keyword, or no domain vocabulary at all combined with a very
// weak best match.
func (r *Router) offTopic(query string, bestScore float64) bool {
	if containsAny(query, offTopicKeywords) {
		return true
	}
	return !containsAny(query, domainKeywords) && bestScore < OffTopicRelevance
}

func (r *Router) handoff(reason string, attempted []domain.RetrievalHit) RouteResult {
	r.logger.Info("router handoff", "reason", reason)
	return RouteResult{
		Action:     ActionHumanHandoff,
		Response:   HandoffResponse,
		Confidence: 0.0,
		Reason:     reason,
		Hits:       attempted,
	}
}

func containsAny(text string, keywords []string) bool {
	t := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func capHits(hits []domain.RetrievalHit, n int) []domain.RetrievalHit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}
