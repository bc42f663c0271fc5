package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

// scriptedGen returns canned outputs in order and records the prompts it saw.
type scriptedGen struct {
	outputs []string
	err     error
	prompts []string
}

func (g *scriptedGen) Generate(_ context.Context, prompt string, _ int) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.prompts) - 1
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return g.outputs[i], nil
}

const validJSON = `{"intent":"claim_opening","urgency":"high","action":"escalate","confidence":0.9}`

func newEngine(gen Generator) *GenerativeEngine {
	return NewGenerativeEngine(gen, DefaultGenOptions(), nil)
}

func TestGenerativeDecide_CleanOutput(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validJSON}}
	d, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != "claim_opening" || d.Urgency != domain.UrgencyHigh || d.Action != domain.ActionEscalate || d.Confidence != 0.9 {
		t.Errorf("unexpected decision %+v", d)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("valid first output must not trigger a repair call, got %d calls", len(gen.prompts))
	}
}

func TestGenerativeDecide_WrappedOutput(t *testing.T) {
	// Commentary around the object is tolerated via slicing.
	gen := &scriptedGen{outputs: []string{"Sure! " + validJSON}}
	d, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != "claim_opening" {
		t.Errorf("unexpected decision %+v", d)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("sliceable output must not trigger a repair call, got %d calls", len(gen.prompts))
	}
}

func TestGenerativeDecide_RepairSucceeds(t *testing.T) {
	gen := &scriptedGen{outputs: []string{"je pense que l'intention est claim_opening", validJSON}}
	d, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != "claim_opening" {
		t.Errorf("unexpected decision %+v", d)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("expected exactly one repair call, got %d calls", len(gen.prompts))
	}
	// The repair prompt must quote the failed output verbatim.
	if !strings.Contains(gen.prompts[1], "je pense que l'intention est claim_opening") {
		t.Errorf("repair prompt does not quote the failed output:\n%s", gen.prompts[1])
	}
}

func TestGenerativeDecide_RepairOnSchemaViolation(t *testing.T) {
	// Parseable JSON that breaks the contract (extra key) must also repair.
	bad := `{"intent":"claim_opening","urgency":"high","action":"escalate","confidence":0.9,"note":"hi"}`
	gen := &scriptedGen{outputs: []string{bad, validJSON}}
	d, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.prompts) != 2 {
		t.Errorf("schema violation should trigger repair, got %d calls", len(gen.prompts))
	}
	if d.Confidence != 0.9 {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestGenerativeDecide_TerminalAfterRepair(t *testing.T) {
	gen := &scriptedGen{outputs: []string{"pas de JSON ici", "toujours pas de JSON"}}
	_, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if !errors.Is(err, domain.ErrGenerationUnparseable) {
		t.Fatalf("expected ErrGenerationUnparseable, got %v", err)
	}
	if len(gen.prompts) != 2 {
		t.Errorf("expected exactly two attempts, got %d", len(gen.prompts))
	}
}

func TestGenerativeDecide_TransportErrorPropagates(t *testing.T) {
	transport := errors.New("connection refused")
	gen := &scriptedGen{err: transport}
	_, err := newEngine(gen).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil)
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}
	if errors.Is(err, domain.ErrGenerationUnparseable) {
		t.Error("transport failures are not schema failures")
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ok   bool
	}{
		{"bare object", validJSON, true},
		{"leading prose", "Voici: " + validJSON, true},
		{"trailing prose", validJSON + " merci", true},
		{"both sides", "```json\n" + validJSON + "\n```", true},
		{"whitespace", "  \n" + validJSON + "\n  ", true},
		{"no braces", "aucun objet ici", false},
		{"reversed braces", "} accident {", false},
		{"malformed inside", `{"intent": }`, false},
	}
	for _, tc := range cases {
		_, err := extractJSONObject(tc.in)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestGenerativeDecide_OnRepairHook(t *testing.T) {
	gen := &scriptedGen{outputs: []string{"pas de JSON ici", validJSON}}
	repairs := 0
	opts := DefaultGenOptions()
	opts.OnRepair = func() { repairs++ }

	if _, err := NewGenerativeEngine(gen, opts, nil).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil); err != nil {
		t.Fatal(err)
	}
	if repairs != 1 {
		t.Errorf("repairs = %d, want 1", repairs)
	}

	// A clean first output must not fire the hook.
	gen = &scriptedGen{outputs: []string{validJSON}}
	repairs = 0
	if _, err := NewGenerativeEngine(gen, opts, nil).Decide(context.Background(), domain.DecisionRequest{TextQuery: "accident"}, nil); err != nil {
		t.Fatal(err)
	}
	if repairs != 0 {
		t.Errorf("repairs = %d, want 0", repairs)
	}
}
