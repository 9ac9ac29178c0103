package domain

import (
	"encoding/json"
	"time"
)

// JobTypeWebhookDelivery tags dead letters produced by this subsystem.
const JobTypeWebhookDelivery = "webhook_delivery"

// DeadLetterEntry is the durable terminal-failure record for a delivery
// that exhausted its retry budget. It is a standalone snapshot with no
// foreign key to the subscription or the delivery record, so deleting a
// subscription does not erase the failure audit trail.
type DeadLetterEntry struct {
	ID             string          `json:"id"`
	JobType        string          `json:"job_type"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	FailureReason  string          `json:"failure_reason"`
	RetryCount     int             `json:"retry_count"`
	FirstFailedAt  time.Time       `json:"first_failed_at"`
	LastFailedAt   time.Time       `json:"last_failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy     *string         `json:"resolved_by,omitempty"`
}
