// Package engine holds the delivery pipeline: the dispatcher that turns
// domain events into delivery records and the executor that runs attempts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentloop/webhook-relay/internal/bus"
	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/contentloop/webhook-relay/internal/metrics"
	"github.com/contentloop/webhook-relay/internal/queue"
	"github.com/contentloop/webhook-relay/internal/store"
)

// SubscriptionSource resolves enabled subscriptions for an event type.
type SubscriptionSource interface {
	FindMatching(ctx context.Context, eventType string) ([]domain.Subscription, error)
}

// RecordCreator is the dispatcher's slice of the delivery record store.
type RecordCreator interface {
	RecentExists(ctx context.Context, idempotencyKey string, window time.Duration) (bool, error)
	CreateDeliveryRecord(ctx context.Context, rec store.NewDeliveryRecord) (*domain.DeliveryRecord, error)
}

// Enqueuer schedules a work item to run no earlier than notBefore.
type Enqueuer interface {
	Enqueue(ctx context.Context, item queue.WorkItem, notBefore time.Time) error
}

// Dispatcher translates a fired domain event into zero or more delivery
// work items, with duplicate suppression.
type Dispatcher struct {
	subs        SubscriptionSource
	records     RecordCreator
	queue       Enqueuer
	dedupWindow time.Duration
	metrics     metrics.Sink
	logger      *slog.Logger
}

func NewDispatcher(subs SubscriptionSource, records RecordCreator, q Enqueuer, dedupWindow time.Duration, sink metrics.Sink, logger *slog.Logger) *Dispatcher {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Dispatcher{
		subs:        subs,
		records:     records,
		queue:       q,
		dedupWindow: dedupWindow,
		metrics:     sink,
		logger:      logger,
	}
}

// Register subscribes the dispatcher to every known event kind on the bus.
func (d *Dispatcher) Register(b *bus.Bus) {
	for _, kind := range domain.Kinds() {
		b.Subscribe(kind, d.OnEvent)
	}
}

// IdempotencyKey is the deterministic dedup key for one
// (subscription, event, entity) combination.
func IdempotencyKey(subscriptionID string, kind domain.EventKind, entityID string) string {
	return subscriptionID + ":" + string(kind) + ":" + entityID
}

// OnEvent fans the event out to all enabled matching subscriptions. A
// failure for one subscription never aborts the others; the returned error
// reflects only whole-event failures (unknown kind, subscription lookup).
func (d *Dispatcher) OnEvent(ctx context.Context, ev domain.Event) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	subs, err := d.subs.FindMatching(ctx, string(ev.Kind))
	if err != nil {
		return fmt.Errorf("finding matching subscriptions: %w", err)
	}

	if len(subs) == 0 {
		d.logger.Debug("no matching subscriptions", "kind", ev.Kind, "event_id", ev.ID)
		d.metrics.EventDispatched(0)
		return nil
	}

	// The envelope is serialized once; the same bytes go to every matched
	// subscription and to every retry.
	payload, err := domain.NewEnvelope(ev).Bytes()
	if err != nil {
		return err
	}

	queued := 0
	for _, sub := range subs {
		if d.dispatchOne(ctx, ev, sub, payload) {
			queued++
		}
	}

	d.metrics.EventDispatched(len(subs))
	d.logger.Info("event dispatched",
		"kind", ev.Kind,
		"event_id", ev.ID,
		"entity_id", ev.EntityID,
		"matched", len(subs),
		"queued", queued,
	)

	return nil
}

// dispatchOne handles one subscription and reports whether work was queued.
// Errors are logged, not returned: sibling subscriptions must not be
// affected.
func (d *Dispatcher) dispatchOne(ctx context.Context, ev domain.Event, sub domain.Subscription, payload []byte) bool {
	key := IdempotencyKey(sub.ID, ev.Kind, ev.EntityID)

	dup, err := d.records.RecentExists(ctx, key, d.dedupWindow)
	if err != nil {
		d.logger.Error("dedup check failed",
			"subscription_id", sub.ID,
			"idempotency_key", key,
			"error", err,
		)
		return false
	}
	if dup {
		d.logger.Debug("duplicate dispatch suppressed",
			"subscription_id", sub.ID,
			"idempotency_key", key,
		)
		d.metrics.DedupSkip()
		return false
	}

	rec, err := d.records.CreateDeliveryRecord(ctx, store.NewDeliveryRecord{
		SubscriptionID: sub.ID,
		EventType:      string(ev.Kind),
		EntityID:       ev.EntityID,
		Payload:        payload,
		IdempotencyKey: key,
	})
	if err != nil {
		d.logger.Error("failed to create delivery record",
			"subscription_id", sub.ID,
			"idempotency_key", key,
			"error", err,
		)
		return false
	}

	if err := d.queue.Enqueue(ctx, queue.NewWorkItem(rec.ID, sub.ID), time.Now()); err != nil {
		d.logger.Error("failed to enqueue delivery",
			"record_id", rec.ID,
			"subscription_id", sub.ID,
			"error", err,
		)
		return false
	}

	return true
}
