package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contentloop/webhook-relay/internal/domain"
)

func testBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testEvent(kind domain.EventKind) domain.Event {
	return domain.Event{
		ID:         "evt-1",
		Kind:       kind,
		EntityID:   "article-1",
		OccurredAt: time.Now(),
	}
}

func TestBus_DeliversToAllHandlers(t *testing.T) {
	b := testBus()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		b.Subscribe(domain.ContentCreated, func(ctx context.Context, ev domain.Event) error {
			calls.Add(1)
			return nil
		})
	}

	b.Publish(context.Background(), testEvent(domain.ContentCreated))
	b.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 handler calls, got %d", got)
	}
}

func TestBus_RoutesByKind(t *testing.T) {
	b := testBus()

	var created, deleted atomic.Int32
	b.Subscribe(domain.ContentCreated, func(ctx context.Context, ev domain.Event) error {
		created.Add(1)
		return nil
	})
	b.Subscribe(domain.ContentDeleted, func(ctx context.Context, ev domain.Event) error {
		deleted.Add(1)
		return nil
	})

	b.Publish(context.Background(), testEvent(domain.ContentCreated))
	b.Wait()

	if created.Load() != 1 || deleted.Load() != 0 {
		t.Errorf("expected created=1 deleted=0, got created=%d deleted=%d",
			created.Load(), deleted.Load())
	}
}

func TestBus_NoHandlersIsNoOp(t *testing.T) {
	b := testBus()

	// Must not panic or block.
	b.Publish(context.Background(), testEvent(domain.ContentPublished))
	b.Wait()
}

func TestBus_PanickingHandlerDoesNotAffectSiblings(t *testing.T) {
	b := testBus()

	var called atomic.Int32
	b.Subscribe(domain.ContentUpdated, func(ctx context.Context, ev domain.Event) error {
		panic("boom")
	})
	b.Subscribe(domain.ContentUpdated, func(ctx context.Context, ev domain.Event) error {
		called.Add(1)
		return nil
	})

	b.Publish(context.Background(), testEvent(domain.ContentUpdated))
	b.Wait()

	if called.Load() != 1 {
		t.Error("sibling handler should run even when another panics")
	}
}

func TestBus_FailingHandlerDoesNotAffectSiblings(t *testing.T) {
	b := testBus()

	var called atomic.Int32
	b.Subscribe(domain.ContentUpdated, func(ctx context.Context, ev domain.Event) error {
		return errors.New("handler failed")
	})
	b.Subscribe(domain.ContentUpdated, func(ctx context.Context, ev domain.Event) error {
		called.Add(1)
		return nil
	})

	b.Publish(context.Background(), testEvent(domain.ContentUpdated))
	b.Wait()

	if called.Load() != 1 {
		t.Error("sibling handler should run even when another errors")
	}
}

func TestBus_PublishDoesNotBlockOnSlowHandler(t *testing.T) {
	b := testBus()

	release := make(chan struct{})
	b.Subscribe(domain.ContentCreated, func(ctx context.Context, ev domain.Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		b.Publish(context.Background(), testEvent(domain.ContentCreated))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}

	close(release)
	b.Wait()
}
