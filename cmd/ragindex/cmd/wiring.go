package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aman-cerp/ragindex/internal/chunk"
	"github.com/aman-cerp/ragindex/internal/config"
	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/embed"
	"github.com/aman-cerp/ragindex/internal/extract"
	"github.com/aman-cerp/ragindex/internal/index"
	"github.com/aman-cerp/ragindex/internal/registry"
	"github.com/aman-cerp/ragindex/internal/scanner"
	"github.com/aman-cerp/ragindex/internal/store"
	"github.com/aman-cerp/ragindex/internal/watcher"
)

// dataDirName is the per-source directory ragindex keeps its index
// artifacts under, rooted at the indexed path itself for a standalone CLI
// invocation (the registry uses a project-scoped data root instead).
const dataDirName = ".ragindex"

// pipeline bundles every component a Coordinator needs, plus the stores it
// wraps, so callers (query, status) can reach the underlying stores
// directly without re-deriving them.
type pipeline struct {
	coordinator *index.Coordinator
	vectors     store.VectorStore
	keywords    store.KeywordStore
	state       store.StateRepository
	embedder    embed.Embedder
	vectorPath  string
}

// vectorIndexPath is where a pipeline's HNSW graph is saved/loaded across
// CLI invocations; unlike the keyword and state stores (which persist
// themselves continuously), the vector store's Save/Load is an explicit
// caller responsibility.
func vectorIndexPath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.hnsw")
}

// buildEmbedder constructs the configured embedding provider. An empty
// provider auto-selects Ollama, matching the zero-config default.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	provider := embed.Provider(cfg.Embeddings.Provider)
	if provider == "" {
		provider = embed.ProviderOllama
	}

	e, err := embed.New(embed.ProviderConfig{
		Provider:     provider,
		Host:         cfg.Embeddings.OllamaHost,
		Model:        cfg.Embeddings.Model,
		PreferredDim: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("construct embedder: %w", err)
	}
	return e, nil
}

// buildPipeline wires an embedder, vector/keyword/state stores, and a
// Coordinator for one root path, persisting index artifacts under
// root/.ragindex. watchForChanges controls whether Run starts the
// filesystem watcher after the initial pass.
func buildPipeline(root string, cfg *config.Config, watchForChanges bool) (*pipeline, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	if embedder.Dimensions() == 0 {
		if _, probeErr := embedder.Embed(context.Background(), "probe"); probeErr != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("probe embedder dimensions: %w", probeErr)
		}
	}

	dataDir := filepath.Join(root, dataDirName)

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("construct vector store: %w", err)
	}
	vecPath := vectorIndexPath(dataDir)
	if _, statErr := os.Stat(vecPath); statErr == nil {
		if err := vectors.Load(vecPath); err != nil {
			slog.Warn("failed to load existing vector index, starting empty", slog.String("error", err.Error()))
		}
	}

	keywords, err := store.NewBleveKeywordStore(filepath.Join(dataDir, "keyword.bleve"), store.DefaultKeywordConfig())
	if err != nil {
		_ = embedder.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("construct keyword store: %w", err)
	}

	state, err := store.NewSQLiteStateRepository(filepath.Join(dataDir, "state.db"))
	if err != nil {
		_ = embedder.Close()
		_ = vectors.Close()
		_ = keywords.Close()
		return nil, fmt.Errorf("construct state repository: %w", err)
	}

	filter := scanner.New(scanner.Config{
		RespectGitignore:  true,
		ExtraExcludeGlobs: cfg.Paths.Exclude,
	})
	detector := index.NewChangeDetector(filter, state)

	chunkCfg := chunk.DeriveConfig(cfg.Search.ChunkSize, embed.TokenLimitFor(cfg.Embeddings.Model), cfg.Search.ChunkOverlap)
	indexer := index.NewHybridIndexer(vectors, keywords, state, embedder, extract.New(nil), chunkCfg, chunk.GoDeclarationSnapHint())

	var w *watcher.HybridWatcher
	if watchForChanges {
		w, err = watcher.NewHybridWatcher(watcher.DefaultOptions())
		if err != nil {
			_ = embedder.Close()
			_ = vectors.Close()
			_ = keywords.Close()
			_ = state.Close()
			return nil, fmt.Errorf("construct watcher: %w", err)
		}
	}

	coordCfg := index.CoordinatorConfig{
		RootPath:        root,
		DataDir:         dataDir,
		Detector:        detector,
		Indexer:         indexer,
		Filter:          filter,
		Embedder:        embedder,
		WatchForChanges: watchForChanges,
	}
	if w != nil {
		coordCfg.Watcher = w
	}

	return &pipeline{
		coordinator: index.NewCoordinator(coordCfg),
		vectors:     vectors,
		keywords:    keywords,
		state:       state,
		embedder:    embedder,
		vectorPath:  vecPath,
	}, nil
}

// startIndexing drives a single-source indexing pass through
// internal/registry rather than calling Coordinator.Run directly: it wraps
// buildPipeline in a registry.CoordinatorFactory, registers one
// domain.Project with one domain.KnowledgeSource for root, and dispatches a
// ProjectIndexingRequested event. The returned pipeline gives the caller
// direct access to the stores the factory built (for saving the vector
// index and reporting progress); the returned Registry is the caller's to
// Close once done.
func startIndexing(ctx context.Context, root string, cfg *config.Config, watchForChanges bool) (*pipeline, *registry.Registry, domain.KnowledgeSource, error) {
	source := domain.KnowledgeSource{ID: "root", Kind: domain.KindLocalRoot, AbsolutePath: root}
	project := domain.Project{ID: "cli", Name: filepath.Base(root), Sources: []domain.KnowledgeSource{source}}

	var built *pipeline
	factory := func(_ domain.Project, src domain.KnowledgeSource) (*index.Coordinator, error) {
		p, err := buildPipeline(src.AbsolutePath, cfg, watchForChanges)
		if err != nil {
			return nil, err
		}
		built = p
		return p.coordinator, nil
	}

	reg := registry.New(factory, filepath.Join(root, dataDirName))
	if err := reg.Handle(ctx, registry.Event{Kind: registry.ProjectIndexingRequested, Project: project}); err != nil {
		return nil, nil, domain.KnowledgeSource{}, fmt.Errorf("start indexing: %w", err)
	}
	if built == nil {
		return nil, nil, domain.KnowledgeSource{}, fmt.Errorf("registry: coordinator for %s was not constructed", root)
	}
	return built, reg, source, nil
}

// saveVectors persists the in-memory HNSW graph to disk so a later CLI
// invocation (query, status, or a resumed index run) can load it back.
func (p *pipeline) saveVectors() error {
	return p.vectors.Save(p.vectorPath)
}

// close releases every resource the pipeline constructed. The Coordinator
// itself owns closing the watcher; stores and the embedder are this
// helper's own responsibility since the CLI constructs them directly
// rather than through the registry.
func (p *pipeline) close() {
	_ = p.coordinator.Close()
	_ = p.embedder.Close()
	_ = p.vectors.Close()
	_ = p.keywords.Close()
	_ = p.state.Close()
}
