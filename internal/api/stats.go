package api

import (
	"context"
	"net/http"

	"github.com/contentloop/webhook-relay/internal/store"
)

// QueueDepther reports the number of pending delivery work items.
type QueueDepther interface {
	Depth(ctx context.Context) (int64, error)
}

type StatsHandler struct {
	store *store.PostgresStore
	queue QueueDepther
}

func NewStatsHandler(s *store.PostgresStore, q QueueDepther) *StatsHandler {
	return &StatsHandler{store: s, queue: q}
}

// Stats returns aggregated delivery statistics plus the live queue depth.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetDeliveryStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	queueDepth, err := h.queue.Depth(r.Context())
	if err != nil {
		queueDepth = 0
	}

	type statsResponse struct {
		store.DeliveryStats
		QueueDepth int64 `json:"queue_depth"`
	}

	respondJSON(w, http.StatusOK, statsResponse{
		DeliveryStats: *stats,
		QueueDepth:    queueDepth,
	})
}
