// Package ollama is a thin HTTP client for a local Ollama instance, covering
// the two endpoints the engine needs: embeddings and text generation. It
// makes no assumptions about output shape; callers own validation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Default model names; override per deployment.
const (
	DefaultEmbedModel    = "nomic-embed-text"
	DefaultGenerateModel = "llama3.2:1b-instruct"
)

// Client talks to one Ollama base URL with fixed models and a per-call
// timeout. Safe for concurrent use.
type Client struct {
	baseURL       string
	embedModel    string
	generateModel string
	http          *http.Client
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	EmbedModel    string
	GenerateModel string
	Timeout       time.Duration
}

// New creates an Ollama client. Zero-value fields fall back to defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.GenerateModel == "" {
		cfg.GenerateModel = DefaultGenerateModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		http:          &http.Client{Timeout: cfg.Timeout},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResp
	if err := c.post(ctx, "/api/embeddings", embedReq{Model: c.embedModel, Prompt: text}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

type generateReq struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Generate returns a non-streamed completion for prompt, bounded to
// maxTokens. Sampling is low-temperature on purpose: the engine wants
// stable JSON, not creativity.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := generateReq{
		Model:  c.generateModel,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  maxTokens,
			Temperature: 0.1,
			TopP:        0.9,
		},
	}
	var out generateResp
	if err := c.post(ctx, "/api/generate", req, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.Response, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
