package api

import (
	"net/http"
	"strconv"

	"github.com/contentloop/webhook-relay/internal/store"
	"github.com/go-chi/chi/v5"
)

type DeliveryHandler struct {
	store *store.PostgresStore
}

func NewDeliveryHandler(s *store.PostgresStore) *DeliveryHandler {
	return &DeliveryHandler{store: s}
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.URL.Query().Get("subscription_id")
	eventType := r.URL.Query().Get("event_type")
	limit := queryLimit(r, 50)

	records, err := h.store.ListDeliveryRecords(r.Context(), subscriptionID, eventType, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery records")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetDeliveryRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery record")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "delivery record not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func queryLimit(r *http.Request, fallback int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
