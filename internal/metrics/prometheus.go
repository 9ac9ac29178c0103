package metrics

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink on the Prometheus client library.
// Registration failures are logged and the affected collector keeps working
// unregistered; metrics never take the pipeline down.
type PrometheusSink struct {
	eventsDispatchedTotal prometheus.Counter
	matchedSubscriptions  prometheus.Histogram
	dedupSkipsTotal       prometheus.Counter
	attemptsTotal         *prometheus.CounterVec
	attemptDuration       prometheus.Histogram
	outcomesTotal         *prometheus.CounterVec

	logger *slog.Logger
}

func NewPrometheusSink(reg prometheus.Registerer, logger *slog.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger}

	s.eventsDispatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_relay_events_dispatched_total",
		Help: "Total number of domain events processed by the dispatcher.",
	})
	s.matchedSubscriptions = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_relay_matched_subscriptions",
		Help:    "Number of subscriptions matched per dispatched event.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
	s.dedupSkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_relay_dedup_skips_total",
		Help: "Total number of dispatches suppressed by the dedup window.",
	})
	s.attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_relay_delivery_attempts_total",
		Help: "Total number of webhook delivery attempts.",
	}, []string{"attempt", "status_class"})
	s.attemptDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_relay_delivery_attempt_duration_seconds",
		Help:    "Webhook request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_relay_delivery_outcomes_total",
		Help: "Total number of post-attempt decisions, by outcome.",
	}, []string{"outcome"})

	s.register(reg, s.eventsDispatchedTotal, "webhook_relay_events_dispatched_total")
	s.register(reg, s.matchedSubscriptions, "webhook_relay_matched_subscriptions")
	s.register(reg, s.dedupSkipsTotal, "webhook_relay_dedup_skips_total")
	s.register(reg, s.attemptsTotal, "webhook_relay_delivery_attempts_total")
	s.register(reg, s.attemptDuration, "webhook_relay_delivery_attempt_duration_seconds")
	s.register(reg, s.outcomesTotal, "webhook_relay_delivery_outcomes_total")

	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("failed to register metric", "metric", name, "error", err)
	}
}

func (s *PrometheusSink) EventDispatched(matched int) {
	s.eventsDispatchedTotal.Inc()
	s.matchedSubscriptions.Observe(float64(matched))
}

func (s *PrometheusSink) DedupSkip() {
	s.dedupSkipsTotal.Inc()
}

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, statusClass string, d time.Duration) {
	s.attemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.attemptDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.outcomesTotal.WithLabelValues(outcome).Inc()
}
