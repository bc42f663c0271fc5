// Package decision produces validated decision records from a request and
// its retrieval hits. Two implementations exist behind the same strategy
// surface: a deterministic rules policy and a generative engine that prompts
// an external model and repairs its output against the schema contract.
package decision

import (
	"context"
	"fmt"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/engine/rules"
)

// Policy thresholds, named so deployments can recalibrate without a rebuild.
var (
	// RetrievalTrustThreshold is the top-hit score at which the retrieval
	// label overrides the keyword prior.
	RetrievalTrustThreshold = 0.70
	// EscalateConfidence is the fused-confidence floor below which the call
	// is always escalated.
	EscalateConfidence = 0.55
)

// RulesPolicy derives decisions purely from keyword and threshold logic.
// It never calls out and, given a well-formed catalog, never fails.
type RulesPolicy struct {
	catalog *rules.Catalog
}

// NewRulesPolicy creates the deterministic decision policy.
func NewRulesPolicy(catalog *rules.Catalog) *RulesPolicy {
	return &RulesPolicy{catalog: catalog}
}

// Decide merges retrieval evidence, the keyword prior, and the urgency
// classification into a complete decision.
//
// Intent priority: trusted retrieval label, then keyword prior, then
// "unknown". Action: escalate on high urgency, low fused confidence, or an
// unknown intent; any one condition suffices.
func (p *RulesPolicy) Decide(_ context.Context, req domain.DecisionRequest, hits []domain.RetrievalHit) (domain.Decision, error) {
	combined := rules.CombinedText(req.TextContext, req.TextQuery)
	urgency := p.catalog.ClassifyUrgency(combined)
	priorIntent, priorStrength := p.catalog.IntentPrior(combined)

	intent := domain.IntentUnknown
	switch {
	case len(hits) > 0 && hits[0].Score >= RetrievalTrustThreshold && hits[0].LabelIntent != "":
		intent = hits[0].LabelIntent
	case priorIntent != domain.IntentUnknown:
		intent = priorIntent
	}

	conf := rules.Fuse(hits, priorStrength)

	action := domain.ActionRAGQuery
	if urgency == domain.UrgencyHigh || conf < EscalateConfidence || intent == domain.IntentUnknown {
		action = domain.ActionEscalate
	}

	d := domain.Decision{
		Intent:     intent,
		Urgency:    urgency,
		Action:     action,
		Confidence: conf,
	}

	// Unreachable given the construction above; a failure here is a
	// programming defect and must surface, not be guessed around.
	if err := domain.ValidateDecision(d); err != nil {
		return domain.Decision{}, fmt.Errorf("decision: rules policy produced invalid record: %w", err)
	}
	return d, nil
}
