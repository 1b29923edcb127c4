package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aman-cerp/ragindex/internal/scanner"
	"github.com/aman-cerp/ragindex/internal/store"
)

// Change classifies one path against the StateRepository's last-known
// state.
type Change struct {
	AbsolutePath string
	Kind         ChangeKind
	ModTime      int64
	Size         int64
}

// ChangeKind is the category of a detected Change.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "ADD"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeSet is a deterministic, sorted diff between a fresh directory walk
// and the StateRepository's recorded files: files present on disk but not
// recorded (ToAdd), files whose (mod_time, size) no longer matches the
// recorded row (ToUpdate), and recorded files no longer present or no
// longer indexable (ToRemove). All three lists are sorted by absolute
// path, giving callers (HybridIndexer batching, progress reporting) a
// deterministic processing order.
type ChangeSet struct {
	ToAdd    []Change
	ToUpdate []Change
	ToRemove []Change
}

// Total returns the number of files the ChangeSet touches.
func (c ChangeSet) Total() int {
	return len(c.ToAdd) + len(c.ToUpdate) + len(c.ToRemove)
}

// ChangeDetector walks a knowledge source root, filters it through a
// FileFilter, and diffs the result against a StateRepository to produce a
// ChangeSet.
type ChangeDetector struct {
	filter *scanner.FileFilter
	state  store.StateRepository
}

// NewChangeDetector constructs a ChangeDetector.
func NewChangeDetector(filter *scanner.FileFilter, state store.StateRepository) *ChangeDetector {
	return &ChangeDetector{filter: filter, state: state}
}

// Detect walks root, applies the FileFilter, and diffs the indexable
// files found against the StateRepository's recorded rows.
func (d *ChangeDetector) Detect(ctx context.Context, root string) (ChangeSet, error) {
	current := make(map[string]os.FileInfo)

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		if !d.filter.IsIndexable(path, root) {
			return nil
		}
		current[path] = info
		return nil
	})
	if err != nil {
		return ChangeSet{}, fmt.Errorf("index: scan %s: %w", root, err)
	}

	recorded, err := d.state.ListFiles(ctx)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("index: list recorded files: %w", err)
	}
	recordedByPath := make(map[string]store.IndexedFile, len(recorded))
	for _, f := range recorded {
		recordedByPath[f.AbsolutePath] = f
	}

	var set ChangeSet
	for path, info := range current {
		modMillis := info.ModTime().UnixMilli()
		size := info.Size()

		prior, known := recordedByPath[path]
		switch {
		case !known:
			set.ToAdd = append(set.ToAdd, Change{AbsolutePath: path, Kind: ChangeAdd, ModTime: modMillis, Size: size})
		case prior.LastModifiedMillis != modMillis || prior.SizeBytes != size:
			set.ToUpdate = append(set.ToUpdate, Change{AbsolutePath: path, Kind: ChangeUpdate, ModTime: modMillis, Size: size})
		}
	}

	for path := range recordedByPath {
		if _, stillPresent := current[path]; !stillPresent {
			set.ToRemove = append(set.ToRemove, Change{AbsolutePath: path, Kind: ChangeRemove})
		}
	}

	sortChanges(set.ToAdd)
	sortChanges(set.ToUpdate)
	sortChanges(set.ToRemove)

	return set, nil
}

// HasChanged reports whether absPath's (mod_time, size) differs from the
// StateRepository's recorded row, or whether it has no recorded row at
// all. Used by the watcher path (§4.8) to skip re-indexing a file whose
// create/modify event fired without its (last_modified, size) actually
// changing — e.g. a touch, or a rewrite to identical content and length.
func (d *ChangeDetector) HasChanged(ctx context.Context, absPath string, modMillis, size int64) (bool, error) {
	prior, known, err := d.state.GetFile(ctx, absPath)
	if err != nil {
		return false, fmt.Errorf("index: get recorded state for %s: %w", absPath, err)
	}
	if !known {
		return true, nil
	}
	return prior.LastModifiedMillis != modMillis || prior.SizeBytes != size, nil
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].AbsolutePath < changes[j].AbsolutePath })
}
