// Package store provides the three persistence backends the indexing
// pipeline writes through: a vector store (HNSW), a keyword store (BM25
// via Bleve), and a state repository (SQLite) tracking per-file indexing
// state.
package store

import (
	"context"
	"fmt"
)

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity, 0-1
}

// VectorStoreConfig configures a VectorStore.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" (default) or "l2"
	M              int    // HNSW max connections per layer
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible defaults for the given
// dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              16,
		EfConstruction: 128,
		EfSearch:       20,
	}
}

// VectorStore provides semantic search over chunk embeddings, per §4.5/I4:
// deletion is best-effort (lazy) — an orphaned vector may linger after a
// failed Delete; the retriever drops any hit whose chunk ID the
// KeywordStore holds no content for.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates an embedding's dimension does not match
// the configured VectorStore dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("store: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DocumentMetadata mirrors domain.ChunkMetadata for the KeywordStore,
// stored as m_-prefixed fields alongside a document's content text (kept
// as a distinct type rather than importing domain, for the same reason as
// IndexedFile below).
type DocumentMetadata struct {
	FilePath   string
	FileName   string
	Extension  string
	ChunkIndex int
}

// Document is a single unit of text handed to the KeywordStore.
type Document struct {
	ID       string // chunk ID
	Content  string
	Metadata DocumentMetadata
}

// KeywordResult is a single BM25 search hit.
type KeywordResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// KeywordConfig is kept by the KeywordStore; the analyzer does not read
// it (it always filters DefaultStopWords and applies no minimum token
// length).
type KeywordConfig struct {
	StopWords      []string
	MinTokenLength int
}

// DefaultKeywordConfig returns the default analyzer configuration.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords are filtered out by the custom code-aware analyzer;
// mostly language keywords and generic identifier noise that would
// otherwise dominate postings lists without adding retrieval signal.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "package",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
	"the", "and", "for", "with",
}

// KeywordStore provides BM25 keyword search over chunk text.
type KeywordStore interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	// GetContent returns the stored text for a chunk ID, for callers (e.g.
	// the retriever) that only have an ID from a Search/VectorStore hit and
	// need the underlying chunk text back.
	GetContent(ctx context.Context, id string) (string, bool, error)
	// FindByFilePath returns every document ID stored for filePath, via the
	// stored m_file_path field rather than a prefix scan over AllIDs.
	FindByFilePath(ctx context.Context, filePath string) ([]string, error)
	Close() error
}

// IndexedFile mirrors domain.IndexedFile for the StateRepository's
// persisted row shape; kept as a distinct type to avoid an import cycle
// between store and domain beyond what the repository strictly needs.
type IndexedFile struct {
	AbsolutePath       string
	LastModifiedMillis int64
	SizeBytes          int64
	IndexedAtUnixMilli int64
	OptionalSHA256     string
}

// StateRepository is the authoritative record of what has been indexed,
// keyed by absolute file path, plus a small string key-value area for
// per-source runtime state (e.g. the embedding dimension/model an index
// was built with).
type StateRepository interface {
	UpsertFile(ctx context.Context, f IndexedFile) error
	GetFile(ctx context.Context, absolutePath string) (IndexedFile, bool, error)
	ListFiles(ctx context.Context) ([]IndexedFile, error)
	DeleteFile(ctx context.Context, absolutePath string) error

	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// State keys used by the indexing pipeline to detect a preferred_dim /
// model mismatch across restarts.
const (
	StateKeyEmbeddingDimension = "embedding_dimension"
	StateKeyEmbeddingModel     = "embedding_model"
)
