// Package rules implements the deterministic prior layer of the decision
// pipeline: urgency classification, keyword intent priors, and the fusion of
// retrieval evidence with prior strength into a single confidence score.
// Everything here is pure computation over an injected, immutable Catalog.
package rules

import (
	"regexp"
	"strings"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

// Policy constants. These are calibration values carried over from live
// tuning, kept as named variables so deployments can override them at start.
var (
	// FullPriorHits is the keyword hit count that saturates prior strength.
	FullPriorHits = 3.0
	// RetrievalWeight and PriorWeight combine the top retrieval score with
	// the keyword prior. Retrieval has seen more context, hence the bias.
	RetrievalWeight = 0.75
	PriorWeight     = 0.25
)

// IntentEntry binds an intent label to its keyword patterns. Entries are a
// slice, not a map: prior ties break toward the first-listed intent, and
// that ordering must be stable.
type IntentEntry struct {
	Intent   string
	Patterns []*regexp.Regexp
}

// Catalog is the immutable pattern configuration for the prior engine.
// Loaded once at startup and injected, never mutated afterwards.
type Catalog struct {
	HighUrgency []*regexp.Regexp
	MedUrgency  []*regexp.Regexp
	Intents     []IntentEntry
}

// CombinedText joins call context and query the way every rule sees them:
// context first, newline, then query, all trimmed.
func CombinedText(textContext, textQuery string) string {
	return strings.TrimSpace(strings.TrimSpace(textContext) + "\n" + strings.TrimSpace(textQuery))
}

// ClassifyUrgency scores text against the urgency pattern sets. HIGH takes
// precedence over MED regardless of match counts: this is a safety bias,
// not a scoring competition.
func (c *Catalog) ClassifyUrgency(text string) domain.Urgency {
	t := strings.ToLower(text)
	for _, p := range c.HighUrgency {
		if p.MatchString(t) {
			return domain.UrgencyHigh
		}
	}
	for _, p := range c.MedUrgency {
		if p.MatchString(t) {
			return domain.UrgencyMed
		}
	}
	return domain.UrgencyLow
}

// IntentPrior returns the best-matching intent and a strength in [0,1].
// Strength saturates at FullPriorHits matching keywords. Ties keep the
// first-seen intent; no hits at all yields ("unknown", 0).
func (c *Catalog) IntentPrior(text string) (string, float64) {
	t := strings.ToLower(text)
	bestIntent, bestHits := domain.IntentUnknown, 0
	for _, entry := range c.Intents {
		hits := 0
		for _, p := range entry.Patterns {
			if p.MatchString(t) {
				hits++
			}
		}
		if hits > bestHits {
			bestIntent, bestHits = entry.Intent, hits
		}
	}
	if bestHits == 0 {
		return domain.IntentUnknown, 0.0
	}
	return bestIntent, min(1.0, float64(bestHits)/FullPriorHits)
}

// Fuse combines the top retrieval score with the keyword prior strength into
// one confidence scalar, clamped to [0,1]. An empty hit list contributes a
// top score of zero.
func Fuse(hits []domain.RetrievalHit, priorStrength float64) float64 {
	topScore := 0.0
	if len(hits) > 0 {
		topScore = hits[0].Score
	}
	conf := RetrievalWeight*topScore + PriorWeight*priorStrength
	return max(0.0, min(1.0, conf))
}
