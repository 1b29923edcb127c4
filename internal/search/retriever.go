package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/embed"
	"github.com/aman-cerp/ragindex/internal/store"
)

// HybridRetriever fans a query out to a VectorStore and a KeywordStore in
// parallel and fuses the two ranked lists with RRF.
type HybridRetriever struct {
	vectors  store.VectorStore
	keywords store.KeywordStore
	embedder embed.Embedder
	rrfK     int
}

// NewHybridRetriever constructs a HybridRetriever with the default RRF
// constant (k=60).
func NewHybridRetriever(vectors store.VectorStore, keywords store.KeywordStore, embedder embed.Embedder) *HybridRetriever {
	return &HybridRetriever{vectors: vectors, keywords: keywords, embedder: embedder, rrfK: DefaultRRFConstant}
}

// WithRRFConstant overrides the RRF smoothing constant k.
func (r *HybridRetriever) WithRRFConstant(k int) *HybridRetriever {
	if k > 0 {
		r.rrfK = k
	}
	return r
}

// Retrieve fans query out to both stores, fuses the results, and returns at
// most maxResults chunks of Content ordered by fused rank.
//
// Failure isolation: if one store errors, the retriever logs and degrades
// to whichever store succeeded. If both error, it returns an empty result,
// not an error — a retrieval miss should never abort the caller's chat
// turn.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, maxResults int) ([]Content, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	var vectorIDs, keywordIDs []string
	var vectorErr, keywordErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorIDs, vectorErr = r.searchVector(gctx, query, maxResults)
		return nil
	})
	g.Go(func() error {
		keywordIDs, keywordErr = r.searchKeyword(gctx, query, maxResults)
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil {
		slog.Warn("vector store search failed, degrading to keyword results", slog.String("error", vectorErr.Error()))
	}
	if keywordErr != nil {
		slog.Warn("keyword store search failed, degrading to vector results", slog.String("error", keywordErr.Error()))
	}

	if vectorErr != nil && keywordErr != nil {
		return nil, nil
	}

	var fusedIDs []string
	switch {
	case len(vectorIDs) == 0 && len(keywordIDs) == 0:
		return nil, nil
	case len(vectorIDs) == 0:
		fusedIDs = keywordIDs
	case len(keywordIDs) == 0:
		fusedIDs = vectorIDs
	default:
		fusedIDs = RRFFuse(r.rrfK, vectorIDs, keywordIDs)
	}

	if len(fusedIDs) > maxResults {
		fusedIDs = fusedIDs[:maxResults]
	}

	scores := make(map[string]float64, len(fusedIDs))
	if len(vectorIDs) > 0 && len(keywordIDs) > 0 {
		for _, id := range fusedIDs {
			scores[id] = rrfScore(r.rrfK, id, vectorIDs, keywordIDs)
		}
	}

	out := make([]Content, 0, len(fusedIDs))
	for _, id := range fusedIDs {
		text, found, err := r.keywords.GetContent(ctx, id)
		if err != nil || !found {
			continue
		}
		filePath, chunkIndex, _ := domain.ParseChunkID(id)
		out = append(out, Content{
			ChunkID:    id,
			FilePath:   filePath,
			ChunkIndex: chunkIndex,
			Text:       text,
			Score:      scores[id],
		})
	}
	return out, nil
}

func (r *HybridRetriever) searchVector(ctx context.Context, query string, k int) ([]string, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := r.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	return ids, nil
}

func (r *HybridRetriever) searchKeyword(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.keywords.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.DocID
	}
	return ids, nil
}

func rrfScore(k int, id string, lists ...[]string) float64 {
	var score float64
	for _, list := range lists {
		for rank, v := range list {
			if v == id {
				score += 1.0 / float64(k+rank+1)
				break
			}
		}
	}
	return score
}
