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

// OllamaEmbedder talks to a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	host   string
	model  string
	dim    int
	client *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder. host should include the
// scheme, e.g. "http://localhost:11434". dim is the expected embedding
// dimension (0 means "unknown until first call").
func NewOllamaEmbedder(host, model string, dim int) *OllamaEmbedder {
	host = strings.TrimSuffix(host, "/")
	return &OllamaEmbedder{
		host:   host,
		model:  model,
		dim:    dim,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// Embed generates a single embedding.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embed(ollama): empty response")
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embed(ollama): marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed(ollama): build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed(ollama): request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed(ollama): read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed(ollama): status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embed(ollama): unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embed(ollama): %s", parsed.Error)
	}

	for i, v := range parsed.Embeddings {
		parsed.Embeddings[i] = normalizeVector(v)
	}
	if o.dim == 0 && len(parsed.Embeddings) > 0 {
		o.dim = len(parsed.Embeddings[0])
	}

	return parsed.Embeddings, nil
}

// Dimensions returns the embedding dimension, 0 if not yet observed.
func (o *OllamaEmbedder) Dimensions() int { return o.dim }

// ModelName returns the configured model identifier.
func (o *OllamaEmbedder) ModelName() string { return o.model }

// Available checks whether the Ollama server responds to /api/tags.
func (o *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources (no-op: http.Client owns no persistent handle
// beyond its transport's connection pool).
func (o *OllamaEmbedder) Close() error { return nil }

var _ Embedder = (*OllamaEmbedder)(nil)
