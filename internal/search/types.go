// Package search implements the HybridRetriever (parallel vector + keyword
// fan-out fused with Reciprocal Rank Fusion) and the IntentClassifier
// (binary should-use-RAG gate) that sit in front of the indexing pipeline's
// two stores.
package search

// Content is a single retrieved chunk of text, ranked and ready for
// citation by the ContentInjector.
type Content struct {
	ChunkID    string
	FilePath   string
	ChunkIndex int
	Text       string
	Score      float64
}
