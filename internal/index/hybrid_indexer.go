package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aman-cerp/ragindex/internal/chunk"
	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/embed"
	"github.com/aman-cerp/ragindex/internal/extract"
	"github.com/aman-cerp/ragindex/internal/store"
)

// HybridIndexer writes chunk embeddings and chunk text into a VectorStore
// and a KeywordStore respectively, keeping the two consistent for a
// single file's worth of chunks per call. Per §5's ordering guarantee,
// additions go to the VectorStore first and the KeywordStore second, and
// removals go to the KeywordStore first and the VectorStore second: a
// crash between the two leaves an orphaned vector (harmless, since I4
// makes vector deletion best-effort and the KeywordStore's file_path
// record is authoritative for retrieval), never an orphaned keyword
// document with no matching vector.
type HybridIndexer struct {
	vectors   store.VectorStore
	keywords  store.KeywordStore
	state     store.StateRepository
	embedder  embed.Embedder
	extractor *extract.Extractor
	chunkCfg  chunk.Config
	hint      chunk.SnapHint
}

// NewHybridIndexer constructs a HybridIndexer. hint may be nil.
func NewHybridIndexer(
	vectors store.VectorStore,
	keywords store.KeywordStore,
	state store.StateRepository,
	embedder embed.Embedder,
	extractor *extract.Extractor,
	chunkCfg chunk.Config,
	hint chunk.SnapHint,
) *HybridIndexer {
	return &HybridIndexer{
		vectors:   vectors,
		keywords:  keywords,
		state:     state,
		embedder:  embedder,
		extractor: extractor,
		chunkCfg:  chunkCfg,
		hint:      hint,
	}
}

// IndexFile extracts, chunks, embeds, and writes every chunk of absPath
// into both stores, then records the file's version in the
// StateRepository. If the file produces no chunks (e.g. empty or
// whitespace-only content), removes any chunks previously indexed for it
// and records no StateRepository row.
func (h *HybridIndexer) IndexFile(ctx context.Context, absPath string, modMillis, size int64) error {
	text, err := h.extractor.Extract(ctx, absPath)
	if err != nil {
		return fmt.Errorf("index: extract %s: %w", absPath, err)
	}

	ext := filepath.Ext(absPath)
	texts := chunk.Plan(text, ext, h.chunkCfg, h.hint)
	if len(texts) == 0 {
		return h.removeFromStores(ctx, absPath)
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			Metadata: domain.ChunkMetadata{
				FilePath:   absPath,
				FileName:   filepath.Base(absPath),
				Extension:  ext,
				ChunkIndex: i,
			},
			Text: t,
		}
	}

	vectors, err := h.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("index: embed %s: %w", absPath, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("index: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ids := make([]string, len(chunks))
	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
		docs[i] = &store.Document{
			ID:      c.ID(),
			Content: c.Text,
			Metadata: store.DocumentMetadata{
				FilePath:   c.Metadata.FilePath,
				FileName:   c.Metadata.FileName,
				Extension:  c.Metadata.Extension,
				ChunkIndex: c.Metadata.ChunkIndex,
			},
		}
	}

	// Remove any chunks left over from a previous, larger version of this
	// file before writing the new set, so a file that shrank doesn't leave
	// stale trailing chunk IDs behind.
	if err := h.removeFromStores(ctx, absPath); err != nil {
		return err
	}

	if err := h.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index: write vectors for %s: %w", absPath, err)
	}
	if err := h.keywords.Index(ctx, docs); err != nil {
		return fmt.Errorf("index: write keyword documents for %s: %w", absPath, err)
	}

	return h.state.UpsertFile(ctx, store.IndexedFile{
		AbsolutePath:       absPath,
		LastModifiedMillis: modMillis,
		SizeBytes:          size,
		IndexedAtUnixMilli: time.Now().UnixMilli(),
	})
}

// RemoveFile deletes every chunk belonging to absPath from both stores and
// drops its StateRepository row.
func (h *HybridIndexer) RemoveFile(ctx context.Context, absPath string) error {
	if err := h.removeFromStores(ctx, absPath); err != nil {
		return err
	}
	return h.state.DeleteFile(ctx, absPath)
}

// removeFromStores deletes every existing chunk belonging to absPath from
// both stores, found via the KeywordStore's stored m_file_path field (the
// authoritative source of truth, I4) rather than guessing a chunk count.
func (h *HybridIndexer) removeFromStores(ctx context.Context, absPath string) error {
	toRemove, err := h.keywords.FindByFilePath(ctx, absPath)
	if err != nil {
		return fmt.Errorf("index: find chunks for %s: %w", absPath, err)
	}
	if len(toRemove) == 0 {
		return nil
	}

	if err := h.keywords.Delete(ctx, toRemove); err != nil {
		return fmt.Errorf("index: delete keyword documents for %s: %w", absPath, err)
	}
	// Vector removal is best-effort (I4): a failure leaves orphaned
	// vectors and is logged, not returned.
	if err := h.vectors.Delete(ctx, toRemove); err != nil {
		slog.Warn("failed to delete vectors", slog.String("path", absPath), slog.String("error", err.Error()))
	}
	return nil
}
