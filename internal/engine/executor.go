package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/contentloop/webhook-relay/internal/metrics"
	"github.com/contentloop/webhook-relay/internal/queue"
	"github.com/contentloop/webhook-relay/internal/signature"
	"github.com/contentloop/webhook-relay/internal/store"
	ws "github.com/contentloop/webhook-relay/internal/websocket"
)

// ExecutorStore is the executor's slice of the persistence layer.
type ExecutorStore interface {
	GetDeliveryRecord(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	MarkDelivered(ctx context.Context, id string, httpStatus int) error
	RecordFailure(ctx context.Context, id string, httpStatus *int, lastError string, notBefore *time.Time) (int, error)
	InsertDeadLetter(ctx context.Context, rec store.DeadLetterRecord) error
}

// Executor performs one HTTP delivery attempt per work item and decides the
// next state: terminal success, retry with backoff, or dead letter.
type Executor struct {
	httpClient *http.Client
	store      ExecutorStore
	queue      Enqueuer
	backoff    BackoffSchedule
	hub        *ws.Hub
	metrics    metrics.Sink
	logger     *slog.Logger
}

func NewExecutor(st ExecutorStore, q Enqueuer, backoff BackoffSchedule, timeout time.Duration, hub *ws.Hub, sink metrics.Sink, logger *slog.Logger) *Executor {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Executor{
		httpClient: &http.Client{Timeout: timeout},
		store:      st,
		queue:      q,
		backoff:    backoff,
		hub:        hub,
		metrics:    sink,
		logger:     logger,
	}
}

// Execute runs one delivery attempt. The record and subscription are
// re-loaded every time: a work item whose parent was deleted mid-flight is
// dropped silently, which is how subscription deletion cancels scheduled
// retries.
func (e *Executor) Execute(ctx context.Context, item queue.WorkItem) {
	rec, err := e.store.GetDeliveryRecord(ctx, item.RecordID)
	if err != nil {
		e.logger.Error("failed to load delivery record", "record_id", item.RecordID, "error", err)
		return
	}
	if rec == nil {
		e.logger.Debug("delivery record gone, dropping work item", "record_id", item.RecordID)
		e.metrics.DeliveryOutcome(metrics.OutcomeDropped)
		return
	}

	sub, err := e.store.GetSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		e.logger.Error("failed to load subscription", "subscription_id", rec.SubscriptionID, "error", err)
		return
	}
	if sub == nil {
		e.logger.Debug("subscription gone, dropping work item",
			"record_id", rec.ID,
			"subscription_id", rec.SubscriptionID,
		)
		e.metrics.DeliveryOutcome(metrics.OutcomeDropped)
		return
	}

	// Terminal guard: a delivered or exhausted record never runs again,
	// even if the queue redelivers its work item.
	if rec.Delivered() || rec.Exhausted(sub.RetryBudget) {
		e.logger.Debug("delivery record already terminal, dropping work item",
			"record_id", rec.ID,
			"attempts", rec.Attempts,
		)
		e.metrics.DeliveryOutcome(metrics.OutcomeDropped)
		return
	}

	result := e.post(ctx, rec, sub)

	attemptNo := rec.Attempts + 1
	e.metrics.DeliveryAttemptCompleted(attemptNo, metrics.ClassifyStatus(deref(result.StatusCode), result.Err), result.Duration)

	if result.Success() {
		e.succeed(ctx, rec, sub, attemptNo, result)
		return
	}
	e.fail(ctx, rec, sub, attemptNo, result)
}

// post sends the stored payload bytes verbatim. The signature covers
// exactly the transmitted bytes, so it is identical on every attempt.
func (e *Executor) post(ctx context.Context, rec *domain.DeliveryRecord, sub *domain.Subscription) attemptResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(rec.Payload))
	if err != nil {
		return attemptResult{Err: err, Duration: time.Since(start)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, signature.HeaderValue(rec.Payload, sub.Secret))
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return attemptResult{Err: err, Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	status := resp.StatusCode
	return attemptResult{StatusCode: &status, Duration: time.Since(start)}
}

func (e *Executor) succeed(ctx context.Context, rec *domain.DeliveryRecord, sub *domain.Subscription, attemptNo int, result attemptResult) {
	if err := e.store.MarkDelivered(ctx, rec.ID, *result.StatusCode); err != nil {
		e.logger.Error("failed to mark record delivered", "record_id", rec.ID, "error", err)
		return
	}

	e.metrics.DeliveryOutcome(metrics.OutcomeDelivered)
	e.broadcast(ws.FeedDelivered, rec, attemptNo, result, nil)

	e.logger.Info("delivery successful",
		"record_id", rec.ID,
		"subscription_id", sub.ID,
		"event_type", rec.EventType,
		"attempt", attemptNo,
		"status_code", *result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
	)
}

func (e *Executor) fail(ctx context.Context, rec *domain.DeliveryRecord, sub *domain.Subscription, attemptNo int, result attemptResult) {
	reason := result.Reason()

	var notBefore *time.Time
	if attemptNo < sub.RetryBudget {
		t := time.Now().Add(e.backoff.DelayFor(attemptNo))
		notBefore = &t
	}

	// attempts++ plus status/error is one transactional update; the
	// returned count is authoritative under queue crash-and-redeliver.
	attempts, err := e.store.RecordFailure(ctx, rec.ID, result.StatusCode, reason, notBefore)
	if err != nil {
		e.logger.Error("failed to record attempt", "record_id", rec.ID, "error", err)
		return
	}

	e.logger.Warn("delivery failed",
		"record_id", rec.ID,
		"subscription_id", sub.ID,
		"event_type", rec.EventType,
		"attempt", attempts,
		"retry_budget", sub.RetryBudget,
		"error", reason,
		"duration_ms", result.Duration.Milliseconds(),
	)

	if attempts >= sub.RetryBudget {
		e.deadLetter(ctx, rec, sub, attempts, reason)
		return
	}

	var next time.Time
	if notBefore != nil {
		next = *notBefore
	} else {
		next = time.Now().Add(e.backoff.DelayFor(attempts))
	}

	if err := e.queue.Enqueue(ctx, queue.NewWorkItem(rec.ID, sub.ID), next); err != nil {
		e.logger.Error("failed to re-enqueue delivery", "record_id", rec.ID, "error", err)
		return
	}

	e.metrics.DeliveryOutcome(metrics.OutcomeRetry)
	nextStr := next.UTC().Format(time.RFC3339)
	e.broadcast(ws.FeedRetrying, rec, attempts, result, &nextStr)
}

func (e *Executor) deadLetter(ctx context.Context, rec *domain.DeliveryRecord, sub *domain.Subscription, attempts int, reason string) {
	err := e.store.InsertDeadLetter(ctx, store.DeadLetterRecord{
		SubscriptionID: rec.SubscriptionID,
		EventType:      rec.EventType,
		Payload:        rec.Payload,
		FailureReason:  reason,
		RetryCount:     attempts,
		FirstFailedAt:  rec.CreatedAt,
		LastFailedAt:   time.Now(),
	})
	if err != nil {
		e.logger.Error("failed to insert dead letter", "record_id", rec.ID, "error", err)
		return
	}

	e.metrics.DeliveryOutcome(metrics.OutcomeDeadLettered)
	e.broadcast(ws.FeedDeadLettered, rec, attempts, attemptResult{}, nil)

	e.logger.Warn("delivery dead-lettered",
		"record_id", rec.ID,
		"subscription_id", sub.ID,
		"event_type", rec.EventType,
		"attempts", attempts,
		"reason", reason,
	)
}

func (e *Executor) broadcast(feedType string, rec *domain.DeliveryRecord, attempt int, result attemptResult, nextAttemptAt *string) {
	if e.hub == nil {
		return
	}

	ev := ws.DeliveryEvent{
		Type:           feedType,
		RecordID:       rec.ID,
		SubscriptionID: rec.SubscriptionID,
		EventType:      rec.EventType,
		Attempt:        attempt,
		StatusCode:     result.StatusCode,
		NextAttemptAt:  nextAttemptAt,
		Timestamp:      time.Now(),
	}
	if result.Err != nil {
		ev.Error = result.Err.Error()
	}
	e.hub.Broadcast(ev)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
