// Package bus is the in-process pub/sub boundary between the content engine
// and the delivery pipeline. Delivery is at-least-once from the publisher's
// point of view; the dispatcher's dedup ledger absorbs redelivery.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/contentloop/webhook-relay/internal/domain"
)

// Handler consumes one domain event. Handlers for the same event run
// independently; a failing or panicking handler never blocks its siblings
// or the publisher.
type Handler func(ctx context.Context, ev domain.Event) error

// Bus fans domain events out to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]Handler
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventKind][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind domain.EventKind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish delivers the event to every handler registered for its kind, each
// in its own goroutine. No registered handler is a no-op, not an error.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Kind]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "kind", ev.Kind, "event_id", ev.ID)
		return
	}

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						"kind", ev.Kind,
						"event_id", ev.ID,
						"panic", r,
					)
				}
			}()
			if err := h(ctx, ev); err != nil {
				b.logger.Error("event handler failed",
					"kind", ev.Kind,
					"event_id", ev.ID,
					"error", err,
				)
			}
		}()
	}
}

// Wait blocks until all in-flight handlers have returned. Used during
// shutdown.
func (b *Bus) Wait() {
	b.wg.Wait()
}
