package domain

import (
	"time"
)

// Subscription is a registered outbound webhook target.
//
// Invariant: RetryBudget >= 1. A disabled subscription is never dispatched
// to, but its in-flight deliveries still run to completion; only deleting
// the subscription cancels future retries.
type Subscription struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	TargetURL   string            `json:"target_url"`
	Secret      string            `json:"secret,omitempty"`
	EventTypes  []string          `json:"event_types"`
	Enabled     bool              `json:"enabled"`
	RetryBudget int               `json:"retry_budget"`
	Headers     map[string]string `json:"headers,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type CreateSubscriptionRequest struct {
	Name        string            `json:"name"`
	TargetURL   string            `json:"target_url"`
	EventTypes  []string          `json:"event_types"`
	RetryBudget int               `json:"retry_budget,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type UpdateSubscriptionRequest struct {
	Name        *string            `json:"name,omitempty"`
	TargetURL   *string            `json:"target_url,omitempty"`
	EventTypes  []string           `json:"event_types,omitempty"`
	Enabled     *bool              `json:"enabled,omitempty"`
	RetryBudget *int               `json:"retry_budget,omitempty"`
	Headers     *map[string]string `json:"headers,omitempty"`
}

// CreateSubscriptionResponse is the only place the signing secret is
// returned in full.
type CreateSubscriptionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	Secret    string `json:"secret"`
}
