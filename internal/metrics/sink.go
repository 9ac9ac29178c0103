package metrics

import (
	"context"
	"errors"
	"net"
	"time"
)

// Sink records delivery pipeline metrics. All methods are fire-and-forget:
// implementations must not block or propagate errors.
type Sink interface {
	// EventDispatched records one fan-out with the number of matched
	// subscriptions.
	EventDispatched(matched int)

	// DedupSkip records a dispatch suppressed by the dedup ledger.
	DedupSkip()

	// DeliveryAttemptCompleted records one HTTP attempt.
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)

	// DeliveryOutcome records the decision taken after an attempt.
	DeliveryOutcome(outcome string)
}

// Outcome constants for DeliveryOutcome.
const (
	OutcomeDelivered    = "delivered"
	OutcomeRetry        = "retry_scheduled"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeDropped      = "dropped"
)

// StatusClass constants for DeliveryAttemptCompleted.
const (
	StatusClass2xx            = "2xx"
	StatusClass3xx            = "3xx"
	StatusClass4xx            = "4xx"
	StatusClass5xx            = "5xx"
	StatusClassTimeout        = "timeout"
	StatusClassTransportError = "transport_error"
)

// ClassifyStatus maps an attempt result to a status class label.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusClassTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return StatusClassTimeout
		}
		return StatusClassTransportError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 300 && statusCode < 400:
		return StatusClass3xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	default:
		return StatusClass5xx
	}
}
