package registry

// OutEventKind tags the six lifecycle events the registry publishes
// outward, project-scoped rather than source-scoped (§4.12, §2 component
// 15's "publishes lifecycle events").
type OutEventKind string

const (
	OutIndexingStarted    OutEventKind = "INDEXING_STARTED"
	OutIndexingInProgress OutEventKind = "INDEXING_IN_PROGRESS"
	OutIndexingCompleted  OutEventKind = "INDEXING_COMPLETED"
	OutIndexingFailed     OutEventKind = "INDEXING_FAILED"
	OutModelNotAvailable  OutEventKind = "MODEL_NOT_AVAILABLE"
	OutIndexingError      OutEventKind = "INDEXING_ERROR"
)

// OutEvent is a single outward lifecycle event. Only the fields relevant
// to Kind are populated; the rest are zero.
type OutEvent struct {
	Kind OutEventKind

	ProjectID   string
	ProjectName string

	// EstimatedFiles is set on OutIndexingStarted: the sum, across every
	// source started for the project, of that source's ChangeDetector
	// total.
	EstimatedFiles int
	// FilesIndexed is set on OutIndexingInProgress and OutIndexingCompleted,
	// TotalFiles on OutIndexingInProgress only: sums across the project's
	// sources.
	FilesIndexed int
	TotalFiles   int
	// ErrorMessage is set on OutIndexingFailed, concatenated across every
	// source of the project that failed.
	ErrorMessage string

	// ModelProvider/ModelName/ModelIsEmbedding/ModelReason are set on
	// OutModelNotAvailable.
	ModelProvider    string
	ModelName        string
	ModelIsEmbedding bool
	ModelReason      string

	// ErrorType/Details are set on OutIndexingError.
	ErrorType string
	Details   string
}

// EventPublisher receives the registry's outward lifecycle events. Nil is
// valid on SetPublisher and simply disables publishing.
type EventPublisher interface {
	Publish(OutEvent)
}
