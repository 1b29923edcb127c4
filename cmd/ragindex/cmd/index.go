package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/ragindex/internal/config"
	"github.com/aman-cerp/ragindex/internal/domain"
)

// progressPollInterval is how often runIndex checks registry progress for
// the initial pass to finish. Indexing itself runs in a background
// goroutine started by the registry; this is purely an exit-when-done poll
// for a one-shot CLI invocation, not a hot loop.
var progressPollInterval = 150 * time.Millisecond

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for hybrid search",
		Long: `Index a directory, building both the BM25 keyword index and the HNSW
vector index under <path>/.ragindex. The process exits once the initial
pass completes; use "ragindex watch" to keep the index current as files
change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, resolvePath(args), false)
		},
	}
	return cmd
}

func resolvePath(args []string) string {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	return path
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, watch bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	cfg, err := config.Load(absPath)
	if err != nil {
		cfg = config.NewConfig()
	}

	p, reg, source, err := startIndexing(ctx, absPath, cfg, watch)
	if err != nil {
		return err
	}
	defer p.close()
	defer reg.Close()

	snap, err := awaitInitialPass(ctx, reg, source.ID)
	if err != nil {
		return err
	}
	if err := p.saveVectors(); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%s)\n", snap.FilesProcessed, statusLabel(snap.Status))
	if !watch {
		return nil
	}

	<-ctx.Done()
	if err := p.saveVectors(); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to save vector index: %v\n", err)
	}
	return nil
}

// awaitInitialPass blocks until the registry-driven coordinator for
// sourceID leaves the indexing state, since Registry.Handle only starts the
// pass in a background goroutine rather than waiting for it.
func awaitInitialPass(ctx context.Context, reg interface {
	Progress(sourceID string) (domain.ProgressSnapshot, bool)
}, sourceID string) (domain.ProgressSnapshot, error) {
	for {
		if snap, ok := reg.Progress(sourceID); ok && snap.Status != domain.StatusNotStarted && snap.Status != domain.StatusIndexing {
			if snap.Status == domain.StatusFailed {
				return snap, fmt.Errorf("index: %s", snap.Error)
			}
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return domain.ProgressSnapshot{}, ctx.Err()
		case <-time.After(progressPollInterval):
		}
	}
}

func statusLabel(s domain.Status) string {
	return string(s)
}
