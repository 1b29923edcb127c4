// Package domain holds the core data model shared across the indexing and
// retrieval pipeline: projects, knowledge sources, indexed files, chunks,
// and progress tracking.
package domain

import "time"

// Project is a logical grouping of knowledge sources owned by the chat
// layer. Deletion cascades to indexer teardown for every source.
type Project struct {
	ID      string
	Name    string
	Sources []KnowledgeSource
}

// SourceKind tags the variant of a KnowledgeSource. LocalRoot is the only
// kind implemented today; the tag keeps the union extensible without a
// breaking change to callers that switch on Kind.
type SourceKind string

// KindLocalRoot is the only supported knowledge source kind.
const KindLocalRoot SourceKind = "local_root"

// KnowledgeSource is a user-configured file-system root belonging to a
// project, indexed independently of its siblings.
type KnowledgeSource struct {
	ID           string
	Kind         SourceKind
	AbsolutePath string
}

// IndexDir returns the on-disk index directory for this source under the
// given project root, matching <project_root>/<source_id>/index/.
func (s KnowledgeSource) IndexDir(projectRoot string) string {
	return projectRoot + "/" + s.ID + "/index"
}

// IndexedFile is the StateRepository's row for one file. absolute_path is
// the primary key. optional_sha256 is left unused by change detection
// (§9 Open Questions) — it exists purely as a verifier field for callers
// that want stronger integrity checks than (last_modified, size).
type IndexedFile struct {
	AbsolutePath       string
	LastModifiedMillis int64
	SizeBytes          int64
	IndexedAt          time.Time
	OptionalSHA256     string
}

// Key identifies this row by its primary key.
func (f IndexedFile) Key() string { return f.AbsolutePath }

// SameVersion reports whether f and other describe the same file content
// per the spec's identity rule: (last_modified, size) equality, ignoring
// checksum and indexed-at timestamp.
func (f IndexedFile) SameVersion(other IndexedFile) bool {
	return f.LastModifiedMillis == other.LastModifiedMillis && f.SizeBytes == other.SizeBytes
}

// ChunkMetadata is attached to every stored chunk in both the vector and
// keyword stores.
type ChunkMetadata struct {
	FilePath   string // absolute path
	FileName   string
	Extension  string
	ChunkIndex int // 0-based within its file
}

// Chunk is a contiguous substring of a file's text produced by the
// ChunkPlanner, paired with the metadata needed to locate and cite it.
// Chunks are ephemeral — they live only inside the two stores, keyed by
// their embedded metadata, never in a separate table.
type Chunk struct {
	Metadata ChunkMetadata
	Text     string
}

// ID is the opaque store key for this chunk: deterministic so that
// re-indexing the same (path, chunk_index) pair overwrites rather than
// duplicates.
func (c Chunk) ID() string {
	return c.Metadata.FilePath + "#" + itoa(c.Metadata.ChunkIndex)
}

// ParseChunkID splits a chunk ID produced by Chunk.ID back into its file
// path and chunk index, for callers (the retriever) that only have an ID
// from a store hit and need to reconstruct citation metadata.
func ParseChunkID(id string) (filePath string, chunkIndex int, ok bool) {
	i := lastIndexByte(id, '#')
	if i < 0 {
		return "", 0, false
	}
	idx, ok := atoi(id[i+1:])
	if !ok {
		return "", 0, false
	}
	return id[:i], idx, true
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, false
	}
	n := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Status is the IndexProgress state machine's current phase.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusIndexing    Status = "INDEXING"
	StatusReady       Status = "READY"
	StatusWatching    Status = "WATCHING"
	StatusFailed      Status = "FAILED"
)

// ProgressSnapshot is an immutable point-in-time read of a coordinator's
// progress, safe to hand to any number of readers.
type ProgressSnapshot struct {
	Status        Status
	FilesProcessed int
	FilesTotal     int
	UpdatedAt      time.Time
	Error          string
	IsWatching     bool
}
