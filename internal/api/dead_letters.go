package api

import (
	"encoding/json"
	"net/http"

	"github.com/contentloop/webhook-relay/internal/store"
	"github.com/go-chi/chi/v5"
)

type DeadLetterHandler struct {
	store *store.PostgresStore
}

func NewDeadLetterHandler(s *store.PostgresStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: s}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.URL.Query().Get("subscription_id")
	resolved := r.URL.Query().Get("resolved") == "true"
	limit := queryLimit(r, 50)

	entries, err := h.store.ListDeadLetters(r.Context(), subscriptionID, resolved, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.store.GetDeadLetter(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ResolvedBy == "" {
		req.ResolvedBy = "manual"
	}

	if err := h.store.ResolveDeadLetter(r.Context(), id, req.ResolvedBy); err != nil {
		respondError(w, http.StatusNotFound, "dead letter not found or already resolved")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
