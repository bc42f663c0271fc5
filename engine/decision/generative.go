package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

// Generator abstracts the external text-generation service. Implementations
// make no promises about output shape; the engine repairs what it gets.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GenOptions configures the generative decision engine.
type GenOptions struct {
	// MaxTokens bounds the attempt-1 completion.
	MaxTokens int
	// RepairMaxTokens bounds the repair completion; slightly larger since
	// the failed output is quoted back.
	RepairMaxTokens int
	// OnRepair, when set, is called once per issued repair prompt. Used for
	// operational counters.
	OnRepair func()
}

// DefaultGenOptions returns the calibrated defaults.
func DefaultGenOptions() GenOptions {
	return GenOptions{MaxTokens: 120, RepairMaxTokens: 140}
}

// GenerativeEngine prompts an external model for a decision and enforces the
// schema contract on its output. Exactly two attempts per request: the
// initial prompt and, on parse or validation failure, one repair prompt.
// After that the engine fails terminally; it never silently falls back to
// the rules path, because that would hide model degradation from operators.
type GenerativeEngine struct {
	gen    Generator
	opts   GenOptions
	logger *slog.Logger
}

// NewGenerativeEngine creates the generative decision engine.
func NewGenerativeEngine(gen Generator, opts GenOptions, logger *slog.Logger) *GenerativeEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerativeEngine{gen: gen, opts: opts, logger: logger}
}

// Decide runs the two-attempt call-and-repair protocol.
func (e *GenerativeEngine) Decide(ctx context.Context, req domain.DecisionRequest, hits []domain.RetrievalHit) (domain.Decision, error) {
	prompt := decisionPrompt(req, hits)

	raw, err := e.gen.Generate(ctx, prompt, e.opts.MaxTokens)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("decision: generate: %w", err)
	}

	d, attempt1Err := parseDecision(raw)
	if attempt1Err == nil {
		return d, nil
	}
	e.logger.Warn("generative output rejected, issuing repair prompt",
		"err", attempt1Err, "raw_len", len(raw))
	if e.opts.OnRepair != nil {
		e.opts.OnRepair()
	}

	raw2, err := e.gen.Generate(ctx, repairPrompt(raw), e.opts.RepairMaxTokens)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("decision: repair generate: %w", err)
	}

	d, attempt2Err := parseDecision(raw2)
	if attempt2Err != nil {
		return domain.Decision{}, fmt.Errorf("decision: output invalid after repair (%v): %w",
			attempt2Err, domain.ErrGenerationUnparseable)
	}
	return d, nil
}

// parseDecision extracts, decodes, and validates a candidate decision from
// raw model output.
func parseDecision(raw string) (domain.Decision, error) {
	candidate, err := extractJSONObject(raw)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := domain.ValidateCandidate(candidate); err != nil {
		return domain.Decision{}, err
	}
	return domain.DecisionFromCandidate(candidate), nil
}

// extractJSONObject decodes trimmed text as a JSON object; when the text is
// not itself a single object it slices from the first '{' to the last '}'
// and tries again. This tolerates surrounding commentary from the model
// while keeping the failure modes enumerable.
func extractJSONObject(raw string) (map[string]any, error) {
	t := strings.TrimSpace(raw)
	if !(strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) {
		start := strings.Index(t, "{")
		end := strings.LastIndex(t, "}")
		if start == -1 || end == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object found in output")
		}
		t = t[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(t))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	return obj, nil
}
