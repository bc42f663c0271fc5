package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterRender(t *testing.T) {
	r := New()
	r.Counter("decisions_total", "Decisions made").Add(3)
	r.Counter(WithLabels("decisions_total", "action", "escalate"), "").Inc()

	out := r.Render()
	for _, want := range []string{
		"# HELP decisions_total Decisions made",
		"# TYPE decisions_total counter",
		"decisions_total 3",
		`decisions_total{action="escalate"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestCounterReuse(t *testing.T) {
	r := New()
	a := r.Counter("x", "")
	b := r.Counter("x", "")
	if a != b {
		t.Error("same name must return the same counter")
	}
}

func TestHistogramRender(t *testing.T) {
	r := New()
	h := r.Histogram("stage_seconds", "Stage latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100) // beyond all buckets, lands only in +Inf

	out := r.Render()
	for _, want := range []string{
		"# TYPE stage_seconds histogram",
		`stage_seconds_bucket{le="0.1"} 1`,
		`stage_seconds_bucket{le="1"} 2`,
		`stage_seconds_bucket{le="10"} 2`,
		`stage_seconds_bucket{le="+Inf"} 3`,
		"stage_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("m", "k", "v"); got != `m{k="v"}` {
		t.Errorf("got %q", got)
	}
	if got := WithLabels("m"); got != "m" {
		t.Errorf("no labels should return the bare name, got %q", got)
	}
	if got := WithLabels("m", "odd"); got != "m" {
		t.Errorf("odd label pairs are ignored, got %q", got)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
