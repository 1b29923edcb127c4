// Package registry implements ProjectIndexer: the process-wide owner of
// one index.Coordinator per (project, knowledge source), reacting to
// lifecycle events from the chat layer.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/index"
)

// EventKind tags the four lifecycle events the registry consumes.
type EventKind string

const (
	// ProjectIndexingRequested starts indexing every source of a project
	// that isn't already registered.
	ProjectIndexingRequested EventKind = "PROJECT_INDEXING_REQUESTED"
	// ProjectReIndex tears down and restarts indexing for a project's
	// sources, even if one is already READY or WATCHING.
	ProjectReIndex EventKind = "PROJECT_REINDEX"
	// ProjectDeleted tears down every coordinator for a project and
	// removes its on-disk index artifacts.
	ProjectDeleted EventKind = "PROJECT_DELETED"
	// ProjectIndexRemoval tears down a single knowledge source's
	// coordinator and on-disk index artifacts, leaving the rest of the
	// project untouched.
	ProjectIndexRemoval EventKind = "PROJECT_INDEX_REMOVAL"
)

// Event is a single lifecycle instruction handed to the registry.
type Event struct {
	Kind    EventKind
	Project domain.Project
	// Source is set for ProjectIndexRemoval; ignored otherwise.
	Source domain.KnowledgeSource
}

// CoordinatorFactory builds a fully-wired Coordinator for one knowledge
// source — its VectorStore, KeywordStore, StateRepository, Embedder, and
// FileWatcher are all provider/config specific, so the registry never
// constructs them itself.
type CoordinatorFactory func(project domain.Project, source domain.KnowledgeSource) (*index.Coordinator, error)

type entry struct {
	coordinator *index.Coordinator
	cancel      context.CancelFunc
}

// Registry is the single process-wide map<source_id, *index.Coordinator>,
// the Go equivalent of the source's companion-object singleton cache (§9).
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	factory   CoordinatorFactory
	dataRoot  string
	publisher EventPublisher
}

// New constructs an empty Registry using factory to build coordinators on
// demand. dataRoot is the base directory under which each source's index
// artifacts live, per domain.KnowledgeSource.IndexDir.
func New(factory CoordinatorFactory, dataRoot string) *Registry {
	return &Registry{entries: make(map[string]*entry), factory: factory, dataRoot: dataRoot}
}

// SetPublisher attaches the registry's outward lifecycle event sink. Nil
// is valid and disables publishing; the zero value of a fresh Registry
// already behaves this way.
func (r *Registry) SetPublisher(publisher EventPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = publisher
}

// Handle dispatches a single lifecycle event.
func (r *Registry) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case ProjectIndexingRequested:
		return r.handleIndexingRequested(ctx, ev.Project)
	case ProjectReIndex:
		return r.handleReIndex(ctx, ev.Project)
	case ProjectDeleted:
		return r.handleProjectDeleted(ev.Project)
	case ProjectIndexRemoval:
		return r.handleIndexRemoval(ev.Project, ev.Source)
	default:
		return fmt.Errorf("registry: unknown event kind %q", ev.Kind)
	}
}

func (r *Registry) handleIndexingRequested(ctx context.Context, project domain.Project) error {
	r.mu.Lock()
	publisher := r.publisher
	r.mu.Unlock()

	// Only sources not already registered actually start a pass this call
	// (the rest are skipped by startIfAbsent's duplicate-prevention check
	// below); the aggregate only waits on those, so a project that's
	// mid-pass on every source doesn't block a later one forever.
	toStart := make([]domain.KnowledgeSource, 0, len(project.Sources))
	for _, source := range project.Sources {
		if !r.isRegistered(source.ID) {
			toStart = append(toStart, source)
		}
	}
	if len(toStart) == 0 {
		return nil
	}

	agg := newProjectAggregate(project, len(toStart), publisher)
	for _, source := range toStart {
		if err := r.startIfAbsent(ctx, project, source, agg); err != nil {
			slog.Error("registry: failed to start indexing", slog.String("source_id", source.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Registry) isRegistered(sourceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sourceID]
	return ok
}

func (r *Registry) startIfAbsent(ctx context.Context, project domain.Project, source domain.KnowledgeSource, agg *projectAggregate) error {
	r.mu.Lock()
	if existing, ok := r.entries[source.ID]; ok {
		r.mu.Unlock()
		if existing.coordinator.Progress().IsIndexing() {
			return nil // §4.6 duplicate prevention
		}
		return nil
	}
	r.mu.Unlock()

	coord, err := r.factory(project, source)
	if err != nil {
		return fmt.Errorf("registry: build coordinator for %s: %w", source.ID, err)
	}
	if agg != nil {
		coord.SetPublisher(sourceSink{agg: agg, sourceID: source.ID})
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.entries[source.ID] = &entry{coordinator: coord, cancel: cancel}
	r.mu.Unlock()

	go func() {
		if err := coord.Run(runCtx); err != nil {
			slog.Error("registry: indexing run failed", slog.String("source_id", source.ID), slog.String("error", err.Error()))
		}
	}()
	return nil
}

// handleReIndex tears down and restarts each of the project's sources,
// except one currently INDEXING: per §4.11/§4.12, a re-index request
// against an in-flight pass is silently dropped rather than cancelling it.
func (r *Registry) handleReIndex(ctx context.Context, project domain.Project) error {
	r.mu.Lock()
	publisher := r.publisher
	r.mu.Unlock()

	toRestart := make([]domain.KnowledgeSource, 0, len(project.Sources))
	for _, source := range project.Sources {
		if r.isIndexing(source.ID) {
			continue
		}
		toRestart = append(toRestart, source)
	}
	if len(toRestart) == 0 {
		return nil
	}

	agg := newProjectAggregate(project, len(toRestart), publisher)
	for _, source := range toRestart {
		r.teardown(source.ID)
		if err := r.startIfAbsent(ctx, project, source, agg); err != nil {
			slog.Error("registry: failed to restart indexing", slog.String("source_id", source.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// isIndexing reports whether source.ID's coordinator, if any, currently
// has status INDEXING.
func (r *Registry) isIndexing(sourceID string) bool {
	r.mu.Lock()
	e, ok := r.entries[sourceID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return e.coordinator.Progress().IsIndexing()
}

func (r *Registry) handleProjectDeleted(project domain.Project) error {
	for _, source := range project.Sources {
		r.teardown(source.ID)
		if err := os.RemoveAll(source.IndexDir(r.dataRoot)); err != nil {
			slog.Warn("registry: failed to remove index artifacts", slog.String("source_id", source.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Registry) handleIndexRemoval(project domain.Project, source domain.KnowledgeSource) error {
	r.teardown(source.ID)
	if err := os.RemoveAll(source.IndexDir(r.dataRoot)); err != nil {
		return fmt.Errorf("registry: remove index artifacts for %s: %w", source.ID, err)
	}
	return nil
}

// teardown cancels and unregisters a source's coordinator, if any. It is a
// no-op if the source was never registered.
func (r *Registry) teardown(sourceID string) {
	r.mu.Lock()
	e, ok := r.entries[sourceID]
	if ok {
		delete(r.entries, sourceID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	e.cancel()
	if err := e.coordinator.Close(); err != nil {
		slog.Warn("registry: error closing coordinator", slog.String("source_id", sourceID), slog.String("error", err.Error()))
	}
}

// Progress returns the current progress snapshot for a source, or false if
// no coordinator is registered for it.
func (r *Registry) Progress(sourceID string) (domain.ProgressSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sourceID]
	if !ok {
		return domain.ProgressSnapshot{}, false
	}
	return e.coordinator.Progress().Snapshot(), true
}

// Close tears down every registered coordinator. Intended for process
// shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.teardown(id)
	}
}
