// Package messaging delivers progression events to subscribers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ErrEventBusClosed is returned by a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is a synchronous in-process event bus. Publish returns after
// every handler ran, so events reach subscribers in publication order.
// It implements shared.EventPublisher.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	logger      *slog.Logger
	metrics     *Metrics
	closed      bool
}

// NewEventBus returns an empty bus. A nil logger uses slog.Default.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		logger:   logger,
		metrics:  newMetrics(),
	}
}

// Subscribe registers a handler for one event type.
func (b *EventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for every event.
func (b *EventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish delivers events in order. A failing handler does not stop
// delivery; all handler errors are joined and returned.
func (b *EventBus) Publish(ctx context.Context, events ...shared.Event) error {
	var errs []error
	for _, event := range events {
		if event == nil {
			continue
		}

		b.mu.RLock()
		if b.closed {
			b.mu.RUnlock()
			return ErrEventBusClosed
		}
		handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
		handlers = append(handlers, b.handlers[event.EventType()]...)
		handlers = append(handlers, b.allHandlers...)
		b.mu.RUnlock()

		b.metrics.recordPublish(event.EventType())
		for _, handler := range handlers {
			if err := b.execute(ctx, event, handler); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// execute runs one handler, turning a panic into an error.
func (b *EventBus) execute(ctx context.Context, event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
		b.metrics.recordHandler(err == nil)
		if err != nil {
			b.logger.Error("handler error",
				"event_type", event.EventType(),
				"learner_id", event.AggregateID(),
				"duration", time.Since(start),
				"error", err,
			)
		}
	}()
	return handler(ctx, event)
}

// Close rejects further subscriptions and publications.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Metrics returns a snapshot of the bus counters.
func (b *EventBus) Metrics() MetricsSnapshot {
	return b.metrics.snapshot()
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics counts bus activity.
type Metrics struct {
	mu        sync.Mutex
	published map[shared.EventType]int64
	succeeded int64
	failed    int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Published         map[shared.EventType]int64
	HandlerSuccesses  int64
	HandlerFailures   int64
	TotalPublications int64
}

func newMetrics() *Metrics {
	return &Metrics{published: make(map[shared.EventType]int64)}
}

func (m *Metrics) recordPublish(t shared.EventType) {
	m.mu.Lock()
	m.published[t]++
	m.mu.Unlock()
}

func (m *Metrics) recordHandler(ok bool) {
	m.mu.Lock()
	if ok {
		m.succeeded++
	} else {
		m.failed++
	}
	m.mu.Unlock()
}

func (m *Metrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MetricsSnapshot{
		Published:        make(map[shared.EventType]int64, len(m.published)),
		HandlerSuccesses: m.succeeded,
		HandlerFailures:  m.failed,
	}
	for t, n := range m.published {
		s.Published[t] = n
		s.TotalPublications += n
	}
	return s
}
