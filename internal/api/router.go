package api

import (
	"net/http"

	"github.com/contentloop/webhook-relay/internal/bus"
	"github.com/contentloop/webhook-relay/internal/store"
	ws "github.com/contentloop/webhook-relay/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(pgStore *store.PostgresStore, q QueueDepther, b *bus.Bus, hub *ws.Hub, registry *prometheus.Registry, defaultRetryBudget int) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	subHandler := NewSubscriptionHandler(pgStore, defaultRetryBudget)
	eventHandler := NewEventHandler(b)
	deliveryHandler := NewDeliveryHandler(pgStore)
	dlqHandler := NewDeadLetterHandler(pgStore)
	statsHandler := NewStatsHandler(pgStore, q)

	// Live delivery feed
	r.Get("/ws", hub.HandleWebSocket)

	// Prometheus metrics
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", subHandler.Create)
			r.Get("/", subHandler.List)
			r.Get("/{id}", subHandler.Get)
			r.Patch("/{id}", subHandler.Update)
			r.Delete("/{id}", subHandler.Delete)
		})

		r.Post("/events", eventHandler.Publish)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Get("/{id}", dlqHandler.Get)
			r.Post("/{id}/resolve", dlqHandler.Resolve)
		})

		r.Get("/stats", statsHandler.Stats)
	})

	return r
}
