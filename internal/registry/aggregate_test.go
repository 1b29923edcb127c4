package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/index"
)

func TestProjectAggregate_StartedWaitsForEverySource(t *testing.T) {
	pub := &fakePublisher{}
	agg := newProjectAggregate(domain.Project{ID: "p1", Name: "proj"}, 2, pub)

	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{Kind: index.EventStarted, EstimatedFiles: 3})
	assert.Empty(t, pub.snapshot())

	sourceSink{agg: agg, sourceID: "s2"}.Publish(index.Event{Kind: index.EventStarted, EstimatedFiles: 4})
	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, OutIndexingStarted, events[0].Kind)
	assert.Equal(t, 7, events[0].EstimatedFiles)
}

func TestProjectAggregate_CompletedSumsFilesAcrossSources(t *testing.T) {
	pub := &fakePublisher{}
	agg := newProjectAggregate(domain.Project{ID: "p1", Name: "proj"}, 2, pub)

	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{Kind: index.EventCompleted, FilesIndexed: 5})
	sourceSink{agg: agg, sourceID: "s2"}.Publish(index.Event{Kind: index.EventCompleted, FilesIndexed: 2})

	events := pub.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, OutIndexingCompleted, last.Kind)
	assert.Equal(t, 7, last.FilesIndexed)
}

func TestProjectAggregate_FailedConcatenatesMessages(t *testing.T) {
	pub := &fakePublisher{}
	agg := newProjectAggregate(domain.Project{ID: "p1", Name: "proj"}, 2, pub)

	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{Kind: index.EventCompleted, FilesIndexed: 1})
	sourceSink{agg: agg, sourceID: "s2"}.Publish(index.Event{Kind: index.EventFailed, Error: "disk full"})

	events := pub.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, OutIndexingFailed, last.Kind)
	assert.Contains(t, last.ErrorMessage, "s2: disk full")
}

func TestProjectAggregate_ModelNotAvailableOnlyDoesNotAlsoPublishCompleted(t *testing.T) {
	pub := &fakePublisher{}
	agg := newProjectAggregate(domain.Project{ID: "p1", Name: "proj"}, 1, pub)

	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{
		Kind:          index.EventModelNotAvailable,
		ModelProvider: "ollama",
		ModelName:     "nomic-embed-text",
		ModelReason:   "model not pulled",
	})

	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, OutModelNotAvailable, events[0].Kind)
}

func TestProjectAggregate_ErrorPassesThroughWithoutAffectingTerminalCount(t *testing.T) {
	pub := &fakePublisher{}
	agg := newProjectAggregate(domain.Project{ID: "p1", Name: "proj"}, 1, pub)

	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{Kind: index.EventError, ErrorType: "watcher", Details: "fsnotify: too many open files"})
	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, OutIndexingError, events[0].Kind)
	assert.Equal(t, "watcher", events[0].ErrorType)

	// The project isn't done: EventError must not have advanced terminalSources.
	sourceSink{agg: agg, sourceID: "s1"}.Publish(index.Event{Kind: index.EventCompleted, FilesIndexed: 1})
	events = pub.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, OutIndexingCompleted, last.Kind)
}
