package feedback

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

func TestRecordJSONShape(t *testing.T) {
	three := 3
	rec := Record{
		RequestID: "req-1",
		Decision: domain.Decision{
			Intent:     "claim_opening",
			Urgency:    domain.UrgencyHigh,
			Action:     domain.ActionEscalate,
			Confidence: 0.82,
		},
		TopHit: &domain.RetrievalHit{
			DocID:       "kb-7",
			Score:       0.82,
			LabelIntent: "claim_opening",
			Snippet:     "Pour déclarer un sinistre...",
		},
		Mode:          "rules",
		At:            time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		AdvisorRating: &three,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"request_id"`, `"decision"`, `"retrieved_top"`, `"mode"`, `"at"`, `"advisor_rating":3`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("serialized record missing %s: %s", key, raw)
		}
	}
}

func TestRecordOmitsTopHitWhenAbsent(t *testing.T) {
	rec := Record{RequestID: "req-2", Mode: "generative", At: time.Now()}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "retrieved_top") {
		t.Fatalf("expected retrieved_top omitted without a hit: %s", raw)
	}
	// A pending rating must serialize as explicit null, not disappear.
	if !strings.Contains(string(raw), `"advisor_rating":null`) {
		t.Fatalf("expected advisor_rating null: %s", raw)
	}
}

func TestDiscardIsANoOp(t *testing.T) {
	var c Collector = Discard{}
	c.Collect(context.Background(), Record{RequestID: "req-3"})
}
