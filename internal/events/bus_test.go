package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

type collector struct {
	mu    sync.Mutex
	steps []string
}

func (c *collector) handle(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev := e.(type) {
	case StepStartedEvent:
		c.steps = append(c.steps, "start:"+string(ev.Step))
	case StepFinishedEvent:
		c.steps = append(c.steps, "finish:"+string(ev.Outcome.Name)+":"+string(ev.Outcome.Status))
	case RunFinishedEvent:
		c.steps = append(c.steps, "run:"+string(ev.Report.Status))
	}
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.steps...)
}

func TestObserverDeliversInOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	c := &collector{}
	for _, typ := range []EventType{StepStarted, StepFinished, RunFinished} {
		bus.SubscribeFunc(typ, c.handle)
	}

	obs := NewObserver(bus)
	var want []string
	for _, step := range []pipeline.StepName{pipeline.StepCreateBaseMint, pipeline.StepCreateQuoteMint, pipeline.StepCreatePool} {
		obs.StepStarted(step)
		obs.StepFinished(pipeline.StepOutcome{Name: step, Status: pipeline.StatusSucceeded})
		want = append(want, "start:"+string(step), "finish:"+string(step)+":succeeded")
	}
	obs.RunFinished(&pipeline.Report{Status: pipeline.RunSucceeded})
	want = append(want, "run:succeeded")

	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Equal(t, want, c.snapshot())
	assert.Equal(t, uint64(len(want)), bus.Stats().Delivered)
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(StepStartedEvent{BaseEvent: BaseEvent{EventType: StepStarted, EventTime: time.Now()}})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	c := &collector{}
	sub := bus.SubscribeFunc(StepStarted, c.handle)
	sub.Unsubscribe()

	ev := StepStartedEvent{BaseEvent: BaseEvent{EventType: StepStarted}, Step: pipeline.StepCreatePool}
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	assert.Empty(t, c.snapshot())
	assert.Equal(t, 0, bus.Stats().Subscribers)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer bus.Shutdown(context.Background())

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.SubscribeFunc(StepStarted, func(context.Context, Event) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, bus.PublishSync(context.Background(), StepStartedEvent{BaseEvent: BaseEvent{EventType: StepStarted}}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	bus.SubscribeFunc(RunFinished, func(context.Context, Event) error { return boom })

	err := bus.PublishSync(context.Background(), RunFinishedEvent{BaseEvent: BaseEvent{EventType: RunFinished}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), bus.Stats().Failed)
}
