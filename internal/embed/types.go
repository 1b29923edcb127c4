// Package embed implements the EmbeddingCapability: provider adapters that
// turn chunk text into vectors, plus IsTransient, which classifies a
// provider failure as transient (worth retrying) or not.
package embed

import (
	"context"
	"errors"
	"math"
	"strings"
)

// Batch size bounds for EmbedBatch callers.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32
)

// DefaultTokenLimit is used for any model name that contains none of the
// tokenLimits keywords.
const DefaultTokenLimit = 2048

// tokenLimits is the heuristic token-limit table used to derive the
// ChunkPlanner's sizing policy (chunk.DeriveConfig's modelTokenLimit
// argument), keyed by model-family keyword.
var tokenLimits = map[string]int{
	"text-embedding-3":       8191,
	"text-embedding-ada-002": 8191,
	"nomic-embed":            8192,
	"mxbai-embed":            512,
	"bge-":                   512,
	"gte":                    8192,
	"e5":                     512,
	"all-minilm":             512,
}

// TokenLimitFor returns the limit of the longest tokenLimits keyword that
// occurs in the lower-cased modelName, falling back to DefaultTokenLimit
// when no keyword occurs.
func TokenLimitFor(modelName string) int {
	name := strings.ToLower(modelName)
	limit, matched := DefaultTokenLimit, 0
	for keyword, l := range tokenLimits {
		if len(keyword) > matched && strings.Contains(name, keyword) {
			limit, matched = l, len(keyword)
		}
	}
	return limit
}

// Embedder generates vector embeddings for text. Every provider adapter in
// this package implements it.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one round trip
	// where the provider supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks whether the embedder is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources held by the embedder.
	Close() error
}

// ErrUnsupportedProvider is returned by New for providers with no adapter
// in this module (anthropic, xai): neither exposes a standalone embedding
// endpoint as of this module's provider list.
var ErrUnsupportedProvider = errors.New("embed: unsupported provider")

// ErrDimensionMismatch is returned during preflight when a configured
// preferred_dim does not match what the provider/model actually returns.
// preferred_dim always takes precedence over probing — this is a fatal
// configuration error, not a silent fallback.
var ErrDimensionMismatch = errors.New("embed: configured dimension does not match provider output")

// normalizeVector normalizes a vector to unit length in place semantics
// (returns a new slice), used by providers whose API does not already
// return unit-normalized vectors.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// IsTransient reports whether err looks like a transient provider failure
// worth retrying: connection resets/refused, timeouts, EOF, or a 502/503/504
// style gateway error surfaced as plain text by an HTTP client.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"eof",
		"timeout",
		"connection reset",
		"connection refused",
		"502", "503", "504",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
