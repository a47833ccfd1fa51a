// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// EventType represents the type of event.
type EventType string

const (
	StepStarted  EventType = "step.started"
	StepFinished EventType = "step.finished"
	RunFinished  EventType = "run.finished"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// StepStartedEvent is emitted when a pipeline step begins.
type StepStartedEvent struct {
	BaseEvent
	Step pipeline.StepName
}

// StepFinishedEvent carries the recorded outcome of a step.
type StepFinishedEvent struct {
	BaseEvent
	Outcome pipeline.StepOutcome
}

// RunFinishedEvent is emitted once with the final report.
type RunFinishedEvent struct {
	BaseEvent
	Report *pipeline.Report
}
