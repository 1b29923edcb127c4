package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/embed"
	"github.com/aman-cerp/ragindex/internal/scanner"
	"github.com/aman-cerp/ragindex/internal/watcher"
)

// DefaultConcurrentIndexingThreads bounds how many files a single
// coordinator extracts/embeds/writes at once.
const DefaultConcurrentIndexingThreads = 4

// lockFileName is created under DataDir for the duration of an indexing
// pass; its presence across a restart means the prior process crashed
// mid-pass and a full reconciliation, not a trust-the-state-repository
// shortcut, is required on the next startup.
const lockFileName = "indexing.lock"

// hybridWatcher is the subset of *watcher.HybridWatcher the coordinator
// depends on, kept narrow so tests can substitute a fake.
type hybridWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan []watcher.FileEvent
	Errors() <-chan error
}

// CoordinatorConfig configures a single (project, knowledge-source)
// Coordinator.
type CoordinatorConfig struct {
	// RootPath is the absolute path of the knowledge source being indexed.
	RootPath string

	// DataDir is where the coordinator's lock file lives, typically the
	// knowledge source's index directory.
	DataDir string

	Detector *ChangeDetector
	Indexer  *HybridIndexer
	Filter   *scanner.FileFilter
	Embedder embed.Embedder

	// Watcher is started when WatchForChanges is true once the initial
	// pass completes. May be nil when WatchForChanges is false.
	Watcher hybridWatcher

	WatchForChanges bool

	// ConcurrentIndexingThreads bounds the semaphore permits for the
	// add/update phase. Defaults to DefaultConcurrentIndexingThreads.
	ConcurrentIndexingThreads int

	// Publisher receives this coordinator's lifecycle events. May be nil,
	// in which case the coordinator simply doesn't publish.
	Publisher EventPublisher

	// ModelProvider labels a ModelNotAvailable event's provider field.
	// Purely descriptive; unused by the indexing logic itself.
	ModelProvider string
}

// Coordinator runs the enumerate -> detect -> chunk -> embed -> write ->
// record-state pipeline for one knowledge source, and owns that source's
// IndexProgress state machine.
type Coordinator struct {
	config   CoordinatorConfig
	progress *domain.Progress
	mu       sync.Mutex

	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewCoordinator constructs a Coordinator in the NOT_STARTED state.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.ConcurrentIndexingThreads <= 0 {
		config.ConcurrentIndexingThreads = DefaultConcurrentIndexingThreads
	}
	return &Coordinator{config: config, progress: domain.NewProgress()}
}

// Progress returns the coordinator's observable progress value.
func (c *Coordinator) Progress() *domain.Progress {
	return c.progress
}

// SetPublisher attaches ev as this coordinator's lifecycle event sink.
// Must be called before Run to take effect; not safe to call concurrently
// with an in-progress Run.
func (c *Coordinator) SetPublisher(ev EventPublisher) {
	c.config.Publisher = ev
}

// Run executes one full indexing pass: preflight, enumerate+detect,
// remove, add/update under a semaphore, persist, then either starts the
// watcher (WATCHING) or stops at READY. A FAILED result is terminal until
// the caller explicitly calls Run again (ProjectReIndex).
func (c *Coordinator) Run(ctx context.Context) error {
	if c.progress.IsIndexing() {
		return fmt.Errorf("index: coordinator is already indexing")
	}

	if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
		c.fail(fmt.Sprintf("create data dir: %v", err))
		return fmt.Errorf("index: create data dir: %w", err)
	}

	lock := flock.New(c.lockPath())
	locked, err := lock.TryLock()
	if err != nil {
		c.fail(fmt.Sprintf("acquire indexing lock: %v", err))
		return fmt.Errorf("index: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("index: another process holds the indexing lock for %s", c.config.RootPath)
	}
	defer lock.Unlock()

	if err := c.preflight(ctx); err != nil {
		c.failModelUnavailable(err)
		return err
	}

	changes, err := c.config.Detector.Detect(ctx, c.config.RootPath)
	if err != nil {
		c.fail(err.Error())
		return fmt.Errorf("index: detect changes: %w", err)
	}

	c.progress.SetIndexing(changes.Total())
	slog.Info("indexing started",
		slog.String("root", c.config.RootPath),
		slog.Int("total", changes.Total()))
	c.publish(Event{Kind: EventStarted, EstimatedFiles: changes.Total()})

	for _, rm := range changes.ToRemove {
		if err := c.config.Indexer.RemoveFile(ctx, rm.AbsolutePath); err != nil {
			slog.Warn("failed to remove file", slog.String("path", rm.AbsolutePath), slog.String("error", err.Error()))
		}
	}

	processed, err := c.processConcurrently(ctx, append(changes.ToAdd, changes.ToUpdate...))
	if err != nil {
		c.fail(err.Error())
		return err
	}

	if c.config.WatchForChanges && c.config.Watcher != nil {
		if err := c.startWatching(ctx); err != nil {
			c.fail(err.Error())
			return err
		}
		c.progress.SetWatching()
	} else {
		c.progress.SetReady()
	}

	c.publish(Event{Kind: EventCompleted, FilesIndexed: processed})
	slog.Info("indexing completed", slog.String("root", c.config.RootPath))
	return nil
}

// preflight probes the embedding capability with a short dummy string
// before committing to a full pass. A fatal, unreachable/unknown model
// aborts the pass before any work is scheduled.
func (c *Coordinator) preflight(ctx context.Context) error {
	if _, err := c.config.Embedder.Embed(ctx, "preflight"); err != nil {
		return fmt.Errorf("index: embedding model unavailable: %w", err)
	}
	return nil
}

// eventProgressInterval is how often, in files processed, an
// EventInProgress is published during the add/update phase (§4.7 step 5).
const eventProgressInterval = 10

// processConcurrently indexes every change under a semaphore of
// ConcurrentIndexingThreads permits. Per-file failures (IO, exhausted
// embedding retries) are logged and skipped rather than aborting the
// pass; the progress counter still advances for them so the pass
// terminates. Returns the number of changes processed.
func (c *Coordinator) processConcurrently(ctx context.Context, changes []Change) (int, error) {
	sem := semaphore.NewWeighted(int64(c.config.ConcurrentIndexingThreads))
	var wg sync.WaitGroup
	var processed int64
	var mu sync.Mutex

	total := c.progress.Snapshot().FilesTotal

	for _, ch := range changes {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return int(processed), fmt.Errorf("index: acquire semaphore: %w", err)
		}

		wg.Add(1)
		go func(ch Change) {
			defer wg.Done()
			defer sem.Release(1)

			if err := c.indexWithRetry(ctx, ch); err != nil {
				slog.Warn("failed to index file", slog.String("path", ch.AbsolutePath), slog.String("error", err.Error()))
			}

			mu.Lock()
			processed++
			n := processed
			mu.Unlock()
			c.progress.UpdateFiles(int(n))
			if n%eventProgressInterval == 0 {
				c.publish(Event{Kind: EventInProgress, FilesIndexed: int(n), TotalFiles: total})
			}
		}(ch)
	}

	wg.Wait()
	return int(processed), nil
}

// indexWithRetry wraps HybridIndexer.IndexFile with the transient
// embedding-error retry policy: a file whose embedding call fails
// transiently is retried with capped exponential backoff; a permanent
// failure, or exhausted retries, is skipped rather than aborting the pass.
func (c *Coordinator) indexWithRetry(ctx context.Context, ch Change) error {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := c.config.Indexer.IndexFile(ctx, ch.AbsolutePath, ch.ModTime, ch.Size)
		if err == nil {
			return nil
		}
		lastErr = err
		if !embed.IsTransient(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("index: exhausted retries for %s: %w", ch.AbsolutePath, lastErr)
}

// startWatching starts the configured watcher and spawns the event loop
// that turns filesystem events into incremental indexing work.
func (c *Coordinator) startWatching(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelWatch = cancel
	c.watchDone = make(chan struct{})
	c.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.config.Watcher.Start(watchCtx, c.config.RootPath)
	}()

	go c.watchLoop(watchCtx)

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("index: start watcher: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
		// Watcher.Start blocks for the lifetime of the watch; give it a
		// moment to fail fast on a bad root before declaring success.
	}
	return nil
}

// watchLoop consumes the watcher's event and error channels for as long
// as the coordinator is watching, dispatching each batch through a
// semaphore-bounded path like the one a full pass uses. A WatcherOverflow error
// triggers a full ChangeDetector rescan rather than being treated as
// fatal, since the specific paths dropped during the overflow are no
// longer individually known.
func (c *Coordinator) watchLoop(ctx context.Context) {
	defer close(c.watchDone)

	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-c.config.Watcher.Events():
			if !ok {
				return
			}
			c.handleEvents(ctx, events)
		case err, ok := <-c.config.Watcher.Errors():
			if !ok {
				return
			}
			if err == watcher.ErrWatcherOverflow {
				slog.Warn("watcher overflow, triggering full rescan", slog.String("root", c.config.RootPath))
				c.rescan(ctx)
				continue
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
			c.publishError("watcher", err.Error())
		}
	}
}

// handleEvents applies a batch of watcher events concurrently, bounded by a
// fresh semaphore of ConcurrentIndexingThreads permits for each batch.
func (c *Coordinator) handleEvents(ctx context.Context, events []watcher.FileEvent) {
	sem := semaphore.NewWeighted(int64(c.config.ConcurrentIndexingThreads))
	var wg sync.WaitGroup

	for _, ev := range events {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(ev watcher.FileEvent) {
			defer wg.Done()
			defer sem.Release(1)
			if err := c.handleEvent(ctx, ev); err != nil {
				slog.Warn("failed to process file event",
					slog.String("path", ev.Path),
					slog.String("operation", ev.Operation.String()),
					slog.String("error", err.Error()))
				c.publishError("file_event", fmt.Sprintf("%s %s: %s", ev.Operation.String(), ev.Path, err.Error()))
			}
		}(ev)
	}

	wg.Wait()
}

func (c *Coordinator) handleEvent(ctx context.Context, ev watcher.FileEvent) error {
	if ev.IsDir {
		return nil
	}

	absPath := ev.Path
	if !filepathIsAbs(absPath) {
		absPath = c.config.RootPath + "/" + absPath
	}

	switch ev.Operation {
	case watcher.OpDelete:
		return c.config.Indexer.RemoveFile(ctx, absPath)
	case watcher.OpGitignoreChange, watcher.OpConfigChange:
		if ev.Operation == watcher.OpGitignoreChange && c.config.Filter != nil {
			c.config.Filter.InvalidateGitignoreCache(c.config.RootPath)
		}
		c.rescan(ctx)
		return nil
	default: // OpCreate, OpModify, OpRename
		if !c.config.Filter.IsIndexable(absPath, c.config.RootPath) {
			return c.config.Indexer.RemoveFile(ctx, absPath)
		}
		info, err := statFile(absPath)
		if err != nil {
			return fmt.Errorf("index: stat %s: %w", absPath, err)
		}
		changed, err := c.config.Detector.HasChanged(ctx, absPath, info.modMillis, info.size)
		if err != nil {
			return err
		}
		if !changed {
			// The watcher fired but (last_modified, size) matches what's
			// already recorded — e.g. a touch, or a rewrite to identical
			// content — so there's nothing new to embed (§4.8).
			return nil
		}
		return c.indexWithRetry(ctx, Change{AbsolutePath: absPath, ModTime: info.modMillis, Size: info.size})
	}
}

// rescan re-runs ChangeDetector against the root and applies the result,
// used both for WatcherOverflow recovery and for gitignore/config-driven
// reconciliation.
func (c *Coordinator) rescan(ctx context.Context) {
	changes, err := c.config.Detector.Detect(ctx, c.config.RootPath)
	if err != nil {
		slog.Warn("rescan failed", slog.String("error", err.Error()))
		c.publishError("rescan", err.Error())
		return
	}

	for _, rm := range changes.ToRemove {
		if err := c.config.Indexer.RemoveFile(ctx, rm.AbsolutePath); err != nil {
			slog.Warn("rescan: failed to remove file", slog.String("path", rm.AbsolutePath), slog.String("error", err.Error()))
		}
	}
	if _, err := c.processConcurrently(ctx, append(changes.ToAdd, changes.ToUpdate...)); err != nil {
		slog.Warn("rescan: failed to process changes", slog.String("error", err.Error()))
	}
}

// Close stops the watcher, if running, and transitions back to READY.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	cancel := c.cancelWatch
	done := c.watchDone
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if c.config.Watcher != nil {
		_ = c.config.Watcher.Stop()
	}
	if done != nil {
		<-done
	}
	c.progress.SetReady()
	return nil
}

func (c *Coordinator) fail(msg string) {
	c.progress.SetFailed(msg)
	slog.Error("indexing failed", slog.String("root", c.config.RootPath), slog.String("error", msg))
	c.publish(Event{Kind: EventFailed, Error: msg})
}

// failModelUnavailable transitions to FAILED and publishes
// EventModelNotAvailable rather than the generic EventFailed, for the one
// failure mode the preflight probe can report (§4.7 step 1).
func (c *Coordinator) failModelUnavailable(err error) {
	msg := err.Error()
	c.progress.SetFailed(msg)
	slog.Error("indexing failed: model unavailable", slog.String("root", c.config.RootPath), slog.String("error", msg))
	c.publish(Event{
		Kind:             EventModelNotAvailable,
		ModelProvider:    c.config.ModelProvider,
		ModelName:        c.config.Embedder.ModelName(),
		ModelIsEmbedding: true,
		ModelReason:      msg,
	})
}

func (c *Coordinator) lockPath() string {
	return c.config.DataDir + "/" + lockFileName
}

func filepathIsAbs(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

type fileStat struct {
	modMillis int64
	size      int64
}

func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{modMillis: info.ModTime().UnixMilli(), size: info.Size()}, nil
}
