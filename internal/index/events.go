package index

// EventKind tags a lifecycle event a Coordinator emits for its one
// knowledge source. The registry is the outward aggregation point: it
// subscribes one EventPublisher per coordinator it starts and rolls the
// per-source events up into project-scoped domain events (§4.12).
type EventKind string

const (
	EventStarted           EventKind = "STARTED"
	EventInProgress        EventKind = "IN_PROGRESS"
	EventCompleted         EventKind = "COMPLETED"
	EventFailed            EventKind = "FAILED"
	EventModelNotAvailable EventKind = "MODEL_NOT_AVAILABLE"
	EventError             EventKind = "ERROR"
)

// Event is a single lifecycle event for one Coordinator's pass.
type Event struct {
	Kind EventKind

	// EstimatedFiles is set on EventStarted.
	EstimatedFiles int
	// FilesIndexed/TotalFiles are set on EventInProgress and
	// EventCompleted (TotalFiles only on EventInProgress).
	FilesIndexed int
	TotalFiles   int
	// Error is set on EventFailed.
	Error string

	// ModelProvider/ModelName/ModelIsEmbedding/ModelReason are set on
	// EventModelNotAvailable.
	ModelProvider    string
	ModelName        string
	ModelIsEmbedding bool
	ModelReason      string

	// ErrorType/Details are set on EventError: a non-terminal runtime
	// error (a single file failing during a watch pass, a watcher error,
	// a failed rescan) that doesn't move the source out of WATCHING.
	ErrorType string
	Details   string
}

// EventPublisher receives lifecycle events from a Coordinator's pipeline.
// A nil Publisher on CoordinatorConfig is valid; the coordinator skips
// publishing entirely in that case.
type EventPublisher interface {
	Publish(Event)
}

// publish is a nil-safe helper so call sites don't need to guard every
// emission point on c.config.Publisher being set.
func (c *Coordinator) publish(ev Event) {
	if c.config.Publisher == nil {
		return
	}
	c.config.Publisher.Publish(ev)
}

// publishError emits a non-terminal EventError.
func (c *Coordinator) publishError(errorType, details string) {
	c.publish(Event{Kind: EventError, ErrorType: errorType, Details: details})
}
