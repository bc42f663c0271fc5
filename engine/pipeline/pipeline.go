// Package pipeline wires the decision stages into a fixed-sequence state
// machine: preprocess, retrieve, decide, feedback. Each stage is a pure
// transformation of the per-request State; data flows strictly forward and
// a request never re-enters an earlier stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/engine/feedback"
	"github.com/VoxalyAI/voxaly-mvp/engine/rules"
	"github.com/VoxalyAI/voxaly-mvp/pkg/fn"
	"github.com/google/uuid"
)

// DefaultTopK is the retrieval breadth when none is configured.
const DefaultTopK = 3

// Retriever is the external retrieval collaborator. Hits come back
// best-first, at most k of them, possibly none. Timeouts and retries are
// the collaborator's concern, not the pipeline's.
type Retriever interface {
	Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievalHit, error)
}

// Decider is the strategy for the decide stage, chosen once at process
// start: decision.RulesPolicy or decision.GenerativeEngine. The branch is
// deployment configuration, never a per-request choice.
type Decider interface {
	Decide(ctx context.Context, req domain.DecisionRequest, hits []domain.RetrievalHit) (domain.Decision, error)
}

// Options configures a Pipeline.
type Options struct {
	TopK int
	// Mode names the decide strategy in traces and feedback records
	// ("rules" or "generative").
	Mode string
	// RetrieveTimeout bounds the retrieval call. Zero means no extra bound
	// beyond the caller's context.
	RetrieveTimeout time.Duration
}

// DefaultOptions returns sensible defaults for the rules deployment.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Mode: "rules", RetrieveTimeout: 5 * time.Second}
}

// Trace is the per-request diagnostics record: warnings, stage markers, and
// timings. It exists for tests and observability and never drives control
// flow.
type Trace struct {
	RequestID     string                   `json:"request_id"`
	CombinedText  string                   `json:"combined_text"`
	Warnings      []string                 `json:"warnings,omitempty"`
	Stages        []string                 `json:"stages"`
	StageDuration map[string]time.Duration `json:"stage_duration"`
	RetrievedN    int                      `json:"retrieved_n"`
	Mode          string                   `json:"mode"`
}

func (t *Trace) warn(format string, args ...any) {
	t.Warnings = append(t.Warnings, fmt.Sprintf(format, args...))
}

func (t *Trace) mark(stage string, start time.Time) {
	t.Stages = append(t.Stages, stage)
	t.StageDuration[stage] = time.Since(start)
}

// State is one request's working memory. Owned exclusively by a single Run
// and discarded afterwards; nothing here is shared between requests.
type State struct {
	Request  domain.DecisionRequest
	Hits     []domain.RetrievalHit
	Decision domain.Decision
	Trace    *Trace
}

// Pipeline executes the four-stage decision flow. Safe for concurrent use:
// all mutable state lives in the per-request State.
type Pipeline struct {
	retriever Retriever
	decider   Decider
	collector feedback.Collector
	opts      Options
	logger    *slog.Logger
	run       fn.Stage[State, State]
}

// New assembles a Pipeline. The stage chain is built once here; Run replays
// it per request.
func New(retriever Retriever, decider Decider, collector feedback.Collector, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = feedback.Discard{}
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	p := &Pipeline{
		retriever: retriever,
		decider:   decider,
		collector: collector,
		opts:      opts,
		logger:    logger,
	}
	p.run = fn.Pipeline(
		fn.TracedStage("pipeline.preprocess", p.preprocess),
		fn.TracedStage("pipeline.retrieve", p.retrieve),
		fn.TracedStage("pipeline.decide", p.decide),
		fn.TracedStage("pipeline.feedback", p.feedbackStage),
	)
	return p
}

// Run executes the pipeline for one request and returns the validated
// decision plus its diagnostics trace. On error the trace is still returned
// so callers can see how far the request got.
func (p *Pipeline) Run(ctx context.Context, req domain.DecisionRequest) (domain.Decision, *Trace, error) {
	state := State{
		Request: req,
		Trace: &Trace{
			RequestID:     uuid.NewString(),
			Mode:          p.opts.Mode,
			StageDuration: make(map[string]time.Duration),
		},
	}

	out, err := p.run(ctx, state).Unwrap()
	if err != nil {
		return domain.Decision{}, state.Trace, err
	}
	return out.Decision, out.Trace, nil
}

// preprocess caches the combined text and records input anomalies. It never
// fails: an odd embedding length is a warning for diagnostics, not a reason
// to reject a live call.
func (p *Pipeline) preprocess(_ context.Context, s State) fn.Result[State] {
	start := time.Now()
	s.Trace.CombinedText = rules.CombinedText(s.Request.TextContext, s.Request.TextQuery)
	if len(s.Request.Embedding) != domain.EmbeddingDim {
		s.Trace.warn("expected %d-dim embedding, got %d", domain.EmbeddingDim, len(s.Request.Embedding))
	}
	s.Trace.mark("preprocess", start)
	return fn.Ok(s)
}

// retrieve calls the retrieval collaborator. Failures are fatal for the
// request and surface as ErrRetrievalUnavailable; there is no retry at this
// layer.
func (p *Pipeline) retrieve(ctx context.Context, s State) fn.Result[State] {
	start := time.Now()
	if p.opts.RetrieveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RetrieveTimeout)
		defer cancel()
	}

	hits, err := p.retriever.Search(ctx, s.Request.Embedding, p.opts.TopK)
	if err != nil {
		return fn.Err[State](fmt.Errorf("pipeline: retrieve: %v: %w", err, domain.ErrRetrievalUnavailable))
	}
	s.Hits = hits
	s.Trace.RetrievedN = len(hits)
	s.Trace.mark("retrieve", start)
	return fn.Ok(s)
}

// decide delegates to the configured strategy. Only the generative strategy
// can fail, and its failure is terminal for the request.
func (p *Pipeline) decide(ctx context.Context, s State) fn.Result[State] {
	start := time.Now()
	d, err := p.decider.Decide(ctx, s.Request, s.Hits)
	if err != nil {
		return fn.Err[State](fmt.Errorf("pipeline: decide: %w", err))
	}
	s.Decision = d
	s.Trace.mark("decide", start)
	return fn.Ok(s)
}

// feedbackStage packages the decision and top hit for later advisor rating.
// It cannot fail; the collector owns any delivery problems.
func (p *Pipeline) feedbackStage(ctx context.Context, s State) fn.Result[State] {
	start := time.Now()
	rec := feedback.Record{
		RequestID: s.Trace.RequestID,
		Decision:  s.Decision,
		Mode:      p.opts.Mode,
		At:        time.Now().UTC(),
	}
	if len(s.Hits) > 0 {
		top := s.Hits[0]
		rec.TopHit = &top
	}
	p.collector.Collect(ctx, rec)
	s.Trace.mark("feedback", start)

	p.logger.Info("decision",
		"request_id", s.Trace.RequestID,
		"mode", p.opts.Mode,
		"intent", s.Decision.Intent,
		"urgency", s.Decision.Urgency,
		"action", s.Decision.Action,
		"confidence", s.Decision.Confidence,
		"retrieved_n", s.Trace.RetrievedN,
	)
	return fn.Ok(s)
}
