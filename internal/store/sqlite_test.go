package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStateRepository_UpsertGetDeleteFile(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSQLiteStateRepository(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	f := IndexedFile{
		AbsolutePath:       "/proj/main.go",
		LastModifiedMillis: 1000,
		SizeBytes:          42,
		IndexedAtUnixMilli: time.Now().UnixMilli(),
	}
	require.NoError(t, repo.UpsertFile(ctx, f))

	got, found, err := repo.GetFile(ctx, "/proj/main.go")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, f.SizeBytes, got.SizeBytes)

	f.SizeBytes = 99
	require.NoError(t, repo.UpsertFile(ctx, f))
	got, _, err = repo.GetFile(ctx, "/proj/main.go")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.SizeBytes, "upsert should overwrite, not duplicate")

	require.NoError(t, repo.DeleteFile(ctx, "/proj/main.go"))
	_, found, err = repo.GetFile(ctx, "/proj/main.go")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStateRepository_ListFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSQLiteStateRepository(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.UpsertFile(ctx, IndexedFile{AbsolutePath: "/a", LastModifiedMillis: 1, SizeBytes: 1}))
	require.NoError(t, repo.UpsertFile(ctx, IndexedFile{AbsolutePath: "/b", LastModifiedMillis: 2, SizeBytes: 2}))

	files, err := repo.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestSQLiteStateRepository_State(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSQLiteStateRepository(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	_, found, err := repo.GetState(ctx, StateKeyEmbeddingModel)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetState(ctx, StateKeyEmbeddingModel, "nomic-embed-text"))
	val, found, err := repo.GetState(ctx, StateKeyEmbeddingModel)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nomic-embed-text", val)

	require.NoError(t, repo.SetState(ctx, StateKeyEmbeddingModel, "other-model"))
	val, _, err = repo.GetState(ctx, StateKeyEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "other-model", val)
}

func TestSQLiteStateRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	repo, err := NewSQLiteStateRepository(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, repo.UpsertFile(ctx, IndexedFile{AbsolutePath: "/a", LastModifiedMillis: 1, SizeBytes: 1}))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteStateRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, found, err := reopened.GetFile(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, found)
}
