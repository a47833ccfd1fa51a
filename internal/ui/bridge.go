package ui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/events"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards pipeline events from the bus into the UI. The bus
// dispatches in order, so steps arrive in the order they ran.
type Bridge struct {
	sender Sender
	logger *zap.Logger
	subs   []events.Subscription
	sent   uint64
}

// NewBridge subscribes to every pipeline event type on bus.
func NewBridge(bus *events.Bus, sender Sender, logger *zap.Logger) *Bridge {
	b := &Bridge{sender: sender, logger: logger}
	for _, t := range []events.EventType{events.StepStarted, events.StepFinished, events.RunFinished} {
		b.subs = append(b.subs, bus.SubscribeFunc(t, b.handle))
	}
	return b
}

func (b *Bridge) handle(_ context.Context, ev events.Event) error {
	var msg tea.Msg
	switch e := ev.(type) {
	case events.StepStartedEvent:
		msg = StepStartedMsg{Step: e.Step, At: e.Timestamp()}
	case events.StepFinishedEvent:
		msg = StepFinishedMsg{Outcome: e.Outcome}
	case events.RunFinishedEvent:
		msg = RunFinishedMsg{Report: e.Report}
	default:
		b.logger.Debug("Unhandled event", zap.String("type", string(ev.Type())))
		return nil
	}
	b.sender.Send(msg)
	atomic.AddUint64(&b.sent, 1)
	return nil
}

// Sent returns how many messages were forwarded.
func (b *Bridge) Sent() uint64 {
	return atomic.LoadUint64(&b.sent)
}

// Close drops the subscriptions.
func (b *Bridge) Close() {
	for _, s := range b.subs {
		s.Unsubscribe()
	}
	b.subs = nil
}
