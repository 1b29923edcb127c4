package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatEmbedder talks to any server exposing the OpenAI
// /v1/embeddings contract: the hosted OpenAI API itself, and the
// self-hosted OpenAI-compatible servers this module also targets (Docker
// Model Runner, LocalAI, LM Studio) differ only in base URL and auth
// header, so one adapter covers all four.
type OpenAICompatEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
}

// NewOpenAICompatEmbedder constructs an adapter against baseURL (no
// trailing slash required). apiKey may be empty for servers that don't
// require auth (LocalAI, LM Studio, Docker Model Runner typically don't).
func NewOpenAICompatEmbedder(baseURL, apiKey, model string, dim int) *OpenAICompatEmbedder {
	return &OpenAICompatEmbedder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed generates a single embedding.
func (o *OpenAICompatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embed(openai-compat): empty response")
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (o *OpenAICompatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openaiEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embed(openai-compat): marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed(openai-compat): build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed(openai-compat): request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed(openai-compat): read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed(openai-compat): status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed openaiEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embed(openai-compat): unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embed(openai-compat): %s", parsed.Error.Message)
	}

	out := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = normalizeVector(d.Embedding)
	}
	if o.dim == 0 && len(out) > 0 && out[0] != nil {
		o.dim = len(out[0])
	}

	return out, nil
}

// Dimensions returns the embedding dimension, 0 if not yet observed.
func (o *OpenAICompatEmbedder) Dimensions() int { return o.dim }

// ModelName returns the configured model identifier.
func (o *OpenAICompatEmbedder) ModelName() string { return o.model }

// Available performs a lightweight GET against /v1/models.
func (o *OpenAICompatEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op.
func (o *OpenAICompatEmbedder) Close() error { return nil }

var _ Embedder = (*OpenAICompatEmbedder)(nil)
