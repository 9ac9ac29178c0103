package metrics

import "time"

// NoopSink is used when metrics are disabled, avoiding nil checks at call
// sites.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EventDispatched(matched int)                                               {}
func (n *NoopSink) DedupSkip()                                                                {}
func (n *NoopSink) DeliveryAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) DeliveryOutcome(outcome string)                                            {}
