package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GeminiEmbedder talks to Google's Generative Language API
// embedContent/batchEmbedContents endpoints.
type GeminiEmbedder struct {
	apiKey string
	model  string
	dim    int
	client *http.Client
}

// NewGeminiEmbedder constructs a GeminiEmbedder for the given model (e.g.
// "text-embedding-004").
func NewGeminiEmbedder(apiKey, model string, dim int) *GeminiEmbedder {
	return &GeminiEmbedder{
		apiKey: apiKey,
		model:  model,
		dim:    dim,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed generates a single embedding.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embed(gemini): empty response")
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for multiple texts via batchEmbedContents.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelPath := "models/" + g.model
	reqs := make([]geminiEmbedRequest, len(texts))
	for i, t := range texts {
		reqs[i] = geminiEmbedRequest{Model: modelPath, Content: geminiContent{Parts: []geminiPart{{Text: t}}}}
	}

	body, err := json.Marshal(geminiBatchRequest{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("embed(gemini): marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", geminiBaseURL, modelPath, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed(gemini): build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed(gemini): request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed(gemini): read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed(gemini): status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed geminiBatchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embed(gemini): unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embed(gemini): %s", parsed.Error.Message)
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = normalizeVector(e.Values)
	}
	if g.dim == 0 && len(out) > 0 {
		g.dim = len(out[0])
	}

	return out, nil
}

// Dimensions returns the embedding dimension, 0 if not yet observed.
func (g *GeminiEmbedder) Dimensions() int { return g.dim }

// ModelName returns the configured model identifier.
func (g *GeminiEmbedder) ModelName() string { return g.model }

// Available performs a lightweight models.get call.
func (g *GeminiEmbedder) Available(ctx context.Context) bool {
	url := fmt.Sprintf("%s/models/%s?key=%s", geminiBaseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op.
func (g *GeminiEmbedder) Close() error { return nil }

var _ Embedder = (*GeminiEmbedder)(nil)
