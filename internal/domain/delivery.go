package domain

import (
	"encoding/json"
	"time"
)

// DeliveryRecord is one logical delivery attempt-set for one
// (subscription, event occurrence) pair.
//
// The payload is immutable once created; every attempt resends the same
// bytes. Attempts, LastStatus, LastError, NotBefore and DeliveredAt are
// mutated by the executor, one attempt at a time. Terminal states are
// DeliveredAt != nil (success) and attempts exhausted (dead-lettered);
// neither is ever left.
type DeliveryRecord struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	EntityID       string          `json:"entity_id"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	Attempts       int             `json:"attempts"`
	LastStatus     *int            `json:"last_status,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	NotBefore      *time.Time      `json:"not_before,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Delivered reports whether the record reached its success terminal state.
func (r *DeliveryRecord) Delivered() bool {
	return r.DeliveredAt != nil
}

// Exhausted reports whether the record consumed the given retry budget.
func (r *DeliveryRecord) Exhausted(budget int) bool {
	return r.Attempts >= budget
}
