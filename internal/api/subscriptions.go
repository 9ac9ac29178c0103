package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/contentloop/webhook-relay/internal/store"
	"github.com/go-chi/chi/v5"
)

type SubscriptionHandler struct {
	store         *store.PostgresStore
	defaultBudget int
}

func NewSubscriptionHandler(s *store.PostgresStore, defaultBudget int) *SubscriptionHandler {
	return &SubscriptionHandler{store: s, defaultBudget: defaultBudget}
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validTargetURL(req.TargetURL) {
		respondError(w, http.StatusBadRequest, "target_url must be a valid http(s) URL")
		return
	}
	if len(req.EventTypes) == 0 {
		respondError(w, http.StatusBadRequest, "at least one event type is required")
		return
	}
	for _, et := range req.EventTypes {
		if !domain.EventKind(et).Valid() {
			respondError(w, http.StatusBadRequest, "unknown event type: "+et)
			return
		}
	}
	if req.RetryBudget < 0 {
		respondError(w, http.StatusBadRequest, "retry_budget must be >= 1")
		return
	}

	sub, err := h.store.CreateSubscription(r.Context(), req, h.defaultBudget)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	// The secret is returned exactly once, at creation.
	respondJSON(w, http.StatusCreated, domain.CreateSubscriptionResponse{
		ID:        sub.ID,
		Name:      sub.Name,
		TargetURL: sub.TargetURL,
		Secret:    sub.Secret,
	})
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscriptions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	for i := range subs {
		subs[i].Secret = ""
	}

	respondJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.store.GetSubscription(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	sub.Secret = ""
	respondJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TargetURL != nil && !validTargetURL(*req.TargetURL) {
		respondError(w, http.StatusBadRequest, "target_url must be a valid http(s) URL")
		return
	}
	for _, et := range req.EventTypes {
		if !domain.EventKind(et).Valid() {
			respondError(w, http.StatusBadRequest, "unknown event type: "+et)
			return
		}
	}

	sub, err := h.store.UpdateSubscription(r.Context(), id, req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	sub.Secret = ""
	respondJSON(w, http.StatusOK, sub)
}

// Delete removes the subscription and, via cascade, its delivery records.
// Scheduled retries for those records become no-ops: the executor drops a
// work item whose record or subscription is gone.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.store.DeleteSubscription(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
