package domain

import (
	"sync"
	"time"
)

// Progress is a writer-owned, reader-observable value holding a
// coordinator's IndexProgress. Exactly one coordinator writes to a given
// Progress; any number of goroutines may call Snapshot concurrently.
//
// Grounded on the teacher's internal/async.IndexProgress, extended from
// three states to the five-state machine this spec requires and carrying
// IsWatching explicitly rather than inferring it from Status alone.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
}

// NewProgress returns a Progress in the NOT_STARTED state.
func NewProgress() *Progress {
	return &Progress{snap: ProgressSnapshot{Status: StatusNotStarted, UpdatedAt: time.Now()}}
}

// Snapshot returns an immutable copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// SetIndexing transitions to INDEXING with the given estimated total.
func (p *Progress) SetIndexing(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{Status: StatusIndexing, FilesTotal: total, UpdatedAt: time.Now()}
}

// UpdateFiles advances files_processed atomically with respect to readers.
func (p *Progress) UpdateFiles(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.FilesProcessed = processed
	p.snap.UpdatedAt = time.Now()
}

// SetReady transitions to READY (indexing finished, not watching).
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = StatusReady
	p.snap.IsWatching = false
	p.snap.Error = ""
	p.snap.UpdatedAt = time.Now()
}

// SetWatching transitions to WATCHING (indexing finished, watcher active).
func (p *Progress) SetWatching() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = StatusWatching
	p.snap.IsWatching = true
	p.snap.Error = ""
	p.snap.UpdatedAt = time.Now()
}

// SetFailed transitions to the terminal FAILED state with a structured
// error message. A FAILED coordinator never transitions back without an
// explicit ProjectReIndex (§7 propagation policy).
func (p *Progress) SetFailed(errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = StatusFailed
	p.snap.IsWatching = false
	p.snap.Error = errMsg
	p.snap.UpdatedAt = time.Now()
}

// IsIndexing reports whether the current status is INDEXING — used by the
// registry to refuse scheduling a duplicate pass (§4.7 duplicate
// prevention).
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Status == StatusIndexing
}
