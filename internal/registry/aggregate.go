package registry

import (
	"strings"
	"sync"

	"github.com/aman-cerp/ragindex/internal/domain"
	"github.com/aman-cerp/ragindex/internal/index"
)

// projectAggregate rolls up the per-source index.Event stream from every
// coordinator started for one project's sources into the six outward
// OutEvent kinds, summing counters across sources rather than forwarding
// one outward event per source (§4.12, §2 component 15).
type projectAggregate struct {
	mu sync.Mutex

	project   domain.Project
	publisher EventPublisher

	totalSources    int
	startedSources  int
	terminalSources int

	estimatedSum int
	indexedByID  map[string]int
	totalByID    map[string]int

	failedMsgs        []string
	modelUnavailableN int
}

func newProjectAggregate(project domain.Project, totalSources int, publisher EventPublisher) *projectAggregate {
	return &projectAggregate{
		project:      project,
		publisher:    publisher,
		totalSources: totalSources,
		indexedByID:  make(map[string]int),
		totalByID:    make(map[string]int),
	}
}

func (a *projectAggregate) publish(ev OutEvent) {
	if a.publisher == nil {
		return
	}
	ev.ProjectID = a.project.ID
	ev.ProjectName = a.project.Name
	a.publisher.Publish(ev)
}

// sourceSink adapts one source's index.EventPublisher onto the shared
// projectAggregate.
type sourceSink struct {
	agg      *projectAggregate
	sourceID string
}

func (s sourceSink) Publish(ev index.Event) {
	a := s.agg
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Kind {
	case index.EventStarted:
		a.startedSources++
		a.estimatedSum += ev.EstimatedFiles
		if a.startedSources == a.totalSources {
			a.publish(OutEvent{Kind: OutIndexingStarted, EstimatedFiles: a.estimatedSum})
		}

	case index.EventInProgress:
		a.indexedByID[s.sourceID] = ev.FilesIndexed
		a.totalByID[s.sourceID] = ev.TotalFiles
		var indexedSum, totalSum int
		for _, n := range a.indexedByID {
			indexedSum += n
		}
		for _, n := range a.totalByID {
			totalSum += n
		}
		a.publish(OutEvent{Kind: OutIndexingInProgress, FilesIndexed: indexedSum, TotalFiles: totalSum})

	case index.EventCompleted:
		a.indexedByID[s.sourceID] = ev.FilesIndexed
		a.terminalSources++
		a.maybeFinish()

	case index.EventFailed:
		a.failedMsgs = append(a.failedMsgs, s.sourceID+": "+ev.Error)
		a.terminalSources++
		a.maybeFinish()

	case index.EventModelNotAvailable:
		a.modelUnavailableN++
		a.terminalSources++
		a.publish(OutEvent{
			Kind:             OutModelNotAvailable,
			ModelProvider:    ev.ModelProvider,
			ModelName:        ev.ModelName,
			ModelIsEmbedding: ev.ModelIsEmbedding,
			ModelReason:      ev.ModelReason,
		})
		a.maybeFinish()

	case index.EventError:
		a.publish(OutEvent{Kind: OutIndexingError, ErrorType: ev.ErrorType, Details: ev.Details})
	}
}

// maybeFinish publishes the project-level terminal event once every source
// started for this pass has reached a terminal state. A project with any
// failed source publishes OutIndexingFailed with every failure
// concatenated; one whose only non-completions were ModelNotAvailable
// (already reported individually) publishes nothing further, since
// "completed" would misrepresent it; otherwise it publishes
// OutIndexingCompleted with the sum of files indexed across sources.
func (a *projectAggregate) maybeFinish() {
	if a.terminalSources != a.totalSources {
		return
	}
	if len(a.failedMsgs) > 0 {
		a.publish(OutEvent{Kind: OutIndexingFailed, ErrorMessage: strings.Join(a.failedMsgs, "; ")})
		return
	}
	if a.modelUnavailableN > 0 {
		return
	}
	var indexedSum int
	for _, n := range a.indexedByID {
		indexedSum += n
	}
	a.publish(OutEvent{Kind: OutIndexingCompleted, FilesIndexed: indexedSum})
}
