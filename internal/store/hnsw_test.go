package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWStore_AddSearchDelete(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	err = s.Add(ctx, []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())
	assert.True(t, s.Contains("a"))

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID, "nearest neighbor to [1,0,0,0] should be itself")

	require.NoError(t, s.Delete(ctx, []string{"a"}))
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 2, s.Count())
}

func TestHNSWStore_DimensionMismatchRejected(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(context.Background(), []string{"a"}, [][]float32{{1, 2, 3}})
	require.Error(t, err)
	var mismatch ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestHNSWStore_LazyDeleteOrphansAllowed(t *testing.T) {
	// I4: deleting then re-adding under a different ID must not corrupt the
	// store — the orphaned node from the first Add is simply never
	// returned again because its ID mapping is gone.
	s, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	require.NoError(t, s.Add(ctx, []string{"b"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, s.Count())
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/vectors.hnsw"

	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	reloaded, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	defer reloaded.Close()
	require.NoError(t, reloaded.Load(path))
	assert.Equal(t, 2, reloaded.Count())
	assert.True(t, reloaded.Contains("a"))
}
