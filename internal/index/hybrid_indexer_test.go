package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragindex/internal/chunk"
	"github.com/aman-cerp/ragindex/internal/extract"
	"github.com/aman-cerp/ragindex/internal/store"
)

// fakeEmbedder returns a deterministic, fixed-dimension vector per text so
// tests don't depend on a real embedding provider.
type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text)%7) + float32(i)*0.01
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                    { return f.dim }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

func newTestIndexer(t *testing.T, dim int) (*HybridIndexer, store.VectorStore, store.KeywordStore, store.StateRepository) {
	t.Helper()
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dim))
	require.NoError(t, err)
	keywords, err := store.NewBleveKeywordStore("", store.DefaultKeywordConfig())
	require.NoError(t, err)
	state, err := store.NewSQLiteStateRepository(":memory:")
	require.NoError(t, err)

	indexer := NewHybridIndexer(
		vectors, keywords, state,
		&fakeEmbedder{dim: dim},
		extract.New(nil),
		chunk.Config{MaxChars: 50, Overlap: 10},
		nil,
	)
	return indexer, vectors, keywords, state
}

func TestHybridIndexer_IndexFileWritesBothStores(t *testing.T) {
	indexer, vectors, keywords, state := newTestIndexer(t, 4)
	defer vectors.Close()
	defer keywords.Close()
	defer state.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("the quick brown fox jumps over the lazy dog repeatedly and with great enthusiasm across several long lines of text so it produces more than one chunk"), 0o644))

	ctx := context.Background()
	require.NoError(t, indexer.IndexFile(ctx, path, 123, 456))

	ids, err := keywords.AllIDs()
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	for _, id := range ids {
		assert.True(t, vectors.Contains(id), "every keyword doc id should have a matching vector")
	}

	f, found, err := state.GetFile(ctx, path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(123), f.LastModifiedMillis)
	assert.Equal(t, int64(456), f.SizeBytes)
}

func TestHybridIndexer_RemoveFileDeletesFromBothStores(t *testing.T) {
	indexer, vectors, keywords, state := newTestIndexer(t, 4)
	defer vectors.Close()
	defer keywords.Close()
	defer state.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("short text"), 0o644))

	ctx := context.Background()
	require.NoError(t, indexer.IndexFile(ctx, path, 1, 2))

	require.NoError(t, indexer.RemoveFile(ctx, path))

	ids, err := keywords.AllIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, found, err := state.GetFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHybridIndexer_ReindexOverwritesRatherThanDuplicates(t *testing.T) {
	indexer, vectors, keywords, state := newTestIndexer(t, 4)
	defer vectors.Close()
	defer keywords.Close()
	defer state.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("some content here"), 0o644))

	ctx := context.Background()
	require.NoError(t, indexer.IndexFile(ctx, path, 1, 2))
	first, err := keywords.AllIDs()
	require.NoError(t, err)

	require.NoError(t, indexer.IndexFile(ctx, path, 3, 4))
	second, err := keywords.AllIDs()
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second, "re-indexing an unchanged chunk layout should overwrite, not duplicate")
}
