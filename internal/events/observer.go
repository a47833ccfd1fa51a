// internal/events/observer.go
package events

import (
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// Observer publishes pipeline progress on a Bus.
type Observer struct {
	bus *Bus
	now func() time.Time
}

// NewObserver returns a pipeline.Observer backed by bus.
func NewObserver(bus *Bus) *Observer {
	return &Observer{bus: bus, now: time.Now}
}

var _ pipeline.Observer = (*Observer)(nil)

func (o *Observer) StepStarted(name pipeline.StepName) {
	_ = o.bus.Publish(StepStartedEvent{BaseEvent: o.base(StepStarted), Step: name})
}

func (o *Observer) StepFinished(outcome pipeline.StepOutcome) {
	_ = o.bus.Publish(StepFinishedEvent{BaseEvent: o.base(StepFinished), Outcome: outcome})
}

func (o *Observer) RunFinished(report *pipeline.Report) {
	_ = o.bus.Publish(RunFinishedEvent{BaseEvent: o.base(RunFinished), Report: report})
}

func (o *Observer) base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: o.now()}
}
