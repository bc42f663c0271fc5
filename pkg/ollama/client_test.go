package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-embed" || req.Prompt != "bonjour" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, EmbedModel: "test-embed"})
	vec, err := c.Embed(context.Background(), "bonjour")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[1] != float32(0.2) {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("generation must not stream")
		}
		if req.Options.NumPredict != 120 {
			t.Errorf("num_predict = %d", req.Options.NumPredict)
		}
		if req.Options.Temperature != 0.1 {
			t.Errorf("temperature = %g", req.Options.Temperature)
		}
		json.NewEncoder(w).Encode(generateResp{Response: `{"intent":"x"}`})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), "prompt", 120)
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"intent":"x"}` {
		t.Errorf("out = %q", out)
	}
}

func TestGenerate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), "prompt", 10); err == nil {
		t.Error("expected error on 500")
	}
}
