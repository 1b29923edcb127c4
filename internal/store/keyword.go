package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	codeTokenizerName  = "ragindex_tokenizer"
	codeStopFilterName = "ragindex_stop"
	codeAnalyzerName   = "ragindex_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(codeStopFilterName, codeStopFilterConstructor)
}

// BleveKeywordStore implements KeywordStore using Bleve's BM25 scoring
// with a custom tokenizer/stop-filter analyzer suited to mixed prose/code
// chunk content.
type BleveKeywordStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config KeywordConfig
	closed bool
}

// bleveDocument is the document shape Bleve indexes. content is analyzed
// with the custom code analyzer for BM25 scoring; the m_-prefixed fields
// are stored as exact-match keyword fields so a chunk can be found and
// read back by file path alone, including across process restarts.
type bleveDocument struct {
	Content     string `json:"content"`
	MFilePath   string `json:"m_file_path"`
	MFileName   string `json:"m_file_name"`
	MExtension  string `json:"m_extension"`
	MChunkIndex int    `json:"m_chunk_index"`
}

// validateIndexIntegrity checks a Bleve index directory for the minimal
// signs of having been shut down cleanly, before opening it. An empty or
// unparsable index_meta.json indicates a crash or a binary-version
// mismatch left the index half-written.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveKeywordStore creates (or reopens) a BM25 index at path. An empty
// path creates an in-memory index, used by tests. A corrupted on-disk
// index is detected and cleared rather than failing startup outright —
// the caller will need to reindex, but the process can still come up.
func NewBleveKeywordStore(path string, config KeywordConfig) (*BleveKeywordStore, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("store: create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword index corrupted, clearing", slog.String("path", path), slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("store: corrupted index at %s, cannot remove: %w (original: %v)", path, rmErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword index open failed, clearing", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("store: corrupted index, cannot clear: %w (original: %v)", rmErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store: create/open keyword index: %w", err)
	}

	return &BleveKeywordStore{index: idx, path: path, config: config}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = codeAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = codeAnalyzerName
	contentField.Store = true
	docMapping.AddFieldMappingsAt("content", contentField)

	// m_-prefixed metadata fields are exact-match (the "keyword" analyzer
	// indexes the whole string as one token) rather than code-tokenized, so
	// a file path lookup matches only that file, never a substring of it.
	for _, field := range []string{"m_file_path", "m_file_name", "m_extension"} {
		keywordField := bleve.NewTextFieldMapping()
		keywordField.Analyzer = "keyword"
		keywordField.Store = true
		docMapping.AddFieldMappingsAt(field, keywordField)
	}

	chunkIndexField := bleve.NewNumericFieldMapping()
	chunkIndexField.Store = true
	docMapping.AddFieldMappingsAt("m_chunk_index", chunkIndexField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}

// Index adds or overwrites documents in the index.
func (b *BleveKeywordStore) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("store: keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bd := bleveDocument{
			Content:     doc.Content,
			MFilePath:   doc.Metadata.FilePath,
			MFileName:   doc.Metadata.FileName,
			MExtension:  doc.Metadata.Extension,
			MChunkIndex: doc.Metadata.ChunkIndex,
		}
		if err := batch.Index(doc.ID, bd); err != nil {
			return fmt.Errorf("store: index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("store: execute batch: %w", err)
	}

	return nil
}

// Search returns documents matching query, scored by BM25.
func (b *BleveKeywordStore) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store: keyword index is closed")
	}

	if strings.TrimSpace(query) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	out := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, &KeywordResult{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return out, nil
}

// Delete removes documents from the index.
func (b *BleveKeywordStore) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("store: keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("store: delete documents: %w", err)
	}

	return nil
}

// AllIDs returns every document ID currently in the index, used by the
// status command to count keyword store entries.
func (b *BleveKeywordStore) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store: keyword index is closed")
	}

	docCount, _ := b.index.DocCount()

	query := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequest(query)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("store: list all ids: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// GetContent returns the stored content for a chunk ID, read back from
// Bleve's stored "content" field rather than a process-local cache — a
// chunk indexed by a previous process must still be retrievable by a
// process that only opened the index to query it.
func (b *BleveKeywordStore) GetContent(ctx context.Context, id string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", false, fmt.Errorf("store: keyword index is closed")
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = []string{"content"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("store: get content for %s: %w", id, err)
	}
	if len(result.Hits) == 0 {
		return "", false, nil
	}

	content, _ := result.Hits[0].Fields["content"].(string)
	return content, true, nil
}

// FindByFilePath returns every document ID whose m_file_path field equals
// filePath exactly, via a term query against the stored keyword field
// rather than an AllIDs scan with a manual prefix check.
func (b *BleveKeywordStore) FindByFilePath(ctx context.Context, filePath string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store: keyword index is closed")
	}

	termQuery := bleve.NewTermQuery(filePath)
	termQuery.SetField("m_file_path")

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(termQuery)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: find by file path %s: %w", filePath, err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Close closes the underlying Bleve index.
func (b *BleveKeywordStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locations {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}

var _ KeywordStore = (*BleveKeywordStore)(nil)

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
