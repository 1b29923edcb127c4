package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragindex/internal/chunk"
	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/extract"
	"github.com/aman-cerp/ragindex/internal/index"
	"github.com/aman-cerp/ragindex/internal/scanner"
	"github.com/aman-cerp/ragindex/internal/store"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	return v, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, _ := f.Embed(ctx, texts[i])
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                    { return f.dim }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

func testFactory(t *testing.T, dataRoot string) CoordinatorFactory {
	return func(project domain.Project, source domain.KnowledgeSource) (*index.Coordinator, error) {
		vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(4))
		require.NoError(t, err)
		keywords, err := store.NewBleveKeywordStore("", store.DefaultKeywordConfig())
		require.NoError(t, err)
		state, err := store.NewSQLiteStateRepository(":memory:")
		require.NoError(t, err)

		filter := scanner.New(scanner.Config{})
		embedder := &fakeEmbedder{dim: 4}
		indexer := index.NewHybridIndexer(vectors, keywords, state, embedder, extract.New(nil), chunk.Config{MaxChars: 50, Overlap: 10}, nil)
		detector := index.NewChangeDetector(filter, state)

		return index.NewCoordinator(index.CoordinatorConfig{
			RootPath: source.AbsolutePath,
			DataDir:  source.IndexDir(dataRoot),
			Detector: detector,
			Indexer:  indexer,
			Filter:   filter,
			Embedder: embedder,
		}), nil
	}
}

func TestRegistry_IndexingRequestedStartsCoordinator(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	dataRoot := t.TempDir()
	reg := New(testFactory(t, dataRoot), dataRoot)
	defer reg.Close()

	project := domain.Project{
		ID: "proj1",
		Sources: []domain.KnowledgeSource{
			{ID: "src1", Kind: domain.KindLocalRoot, AbsolutePath: root},
		},
	}

	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectIndexingRequested, Project: project}))

	require.Eventually(t, func() bool {
		snap, ok := reg.Progress("src1")
		return ok && snap.Status == domain.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []OutEvent
}

func (f *fakePublisher) Publish(ev OutEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) snapshot() []OutEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutEvent, len(f.events))
	copy(out, f.events)
	return out
}

func TestRegistry_IndexingRequestedPublishesStartedAndCompleted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	dataRoot := t.TempDir()
	reg := New(testFactory(t, dataRoot), dataRoot)
	defer reg.Close()

	pub := &fakePublisher{}
	reg.SetPublisher(pub)

	project := domain.Project{
		ID:   "proj1",
		Name: "Proj One",
		Sources: []domain.KnowledgeSource{
			{ID: "src1", Kind: domain.KindLocalRoot, AbsolutePath: root},
		},
	}

	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectIndexingRequested, Project: project}))

	require.Eventually(t, func() bool {
		snap, ok := reg.Progress("src1")
		return ok && snap.Status == domain.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, ev := range pub.snapshot() {
			if ev.Kind == OutIndexingCompleted {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	events := pub.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, OutIndexingStarted, events[0].Kind)
	assert.Equal(t, "proj1", events[0].ProjectID)
	assert.Equal(t, "Proj One", events[0].ProjectName)
}

func TestRegistry_ReIndexDropsRequestWhileIndexing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	dataRoot := t.TempDir()
	reg := New(testFactory(t, dataRoot), dataRoot)
	defer reg.Close()

	project := domain.Project{
		ID: "proj1",
		Sources: []domain.KnowledgeSource{
			{ID: "src1", Kind: domain.KindLocalRoot, AbsolutePath: root},
		},
	}

	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectIndexingRequested, Project: project}))

	// A ReIndex delivered (possibly while the source is still INDEXING)
	// must never error and must not prevent the original pass from
	// reaching READY (§4.11/§4.12 silent-drop rule).
	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectReIndex, Project: project}))

	require.Eventually(t, func() bool {
		snap, ok := reg.Progress("src1")
		return ok && snap.Status == domain.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistry_ProjectDeletedRemovesArtifactsAndCoordinator(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	dataRoot := t.TempDir()
	reg := New(testFactory(t, dataRoot), dataRoot)

	project := domain.Project{
		ID: "proj1",
		Sources: []domain.KnowledgeSource{
			{ID: "src1", Kind: domain.KindLocalRoot, AbsolutePath: root},
		},
	}

	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectIndexingRequested, Project: project}))
	require.Eventually(t, func() bool {
		snap, ok := reg.Progress("src1")
		return ok && snap.Status == domain.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, reg.Handle(context.Background(), Event{Kind: ProjectDeleted, Project: project}))

	_, ok := reg.Progress("src1")
	assert.False(t, ok)

	_, err := os.Stat(project.Sources[0].IndexDir(dataRoot))
	assert.True(t, os.IsNotExist(err))
}
