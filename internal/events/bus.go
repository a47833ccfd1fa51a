// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish after Shutdown.
var ErrBusClosed = errors.New("event bus is shutting down")

// Handler processes events of one type. Handlers run on the dispatcher
// goroutine and delay every later event while they block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

type subscriber struct {
	id      string
	handler Handler
}

type subscription struct {
	bus *Bus
	id  string
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}

// Bus is an in-memory event bus. One dispatcher goroutine delivers events in
// publish order; handlers of one type run in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscriber
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan Event

	delivered uint64
	failed    uint64
}

// Stats is a snapshot of the bus counters.
type Stats struct {
	Subscribers int
	Pending     int
	Capacity    int
	Delivered   uint64
	Failed      uint64
}

// NewBus starts a bus whose queue holds bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[EventType][]subscriber),
		logger:   logger.Named("event_bus"),
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan Event, bufferSize),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

// Subscribe registers a handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.New().String()

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{bus: b, id: id, typ: eventType}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = subs
	}
}

// Publish queues an event for delivery. It blocks while the queue is full
// and fails once the bus is shutting down.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	default:
	}
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	case b.queue <- event:
		return nil
	}
}

// PublishSync delivers an event on the caller's goroutine and joins the
// handler errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", s.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	b.mu.Lock()
	b.delivered++
	if len(errs) > 0 {
		b.failed++
	}
	b.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			// drain
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			_ = b.PublishSync(b.ctx, event)
		}
	}
}

// Shutdown stops accepting events, delivers the queued ones and waits for the
// dispatcher or ctx.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Debug("Shutting down event bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.handlers {
		n += len(subs)
	}
	return Stats{
		Subscribers: n,
		Pending:     len(b.queue),
		Capacity:    cap(b.queue),
		Delivered:   b.delivered,
		Failed:      b.failed,
	}
}
