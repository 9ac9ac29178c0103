package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/contentloop/webhook-relay/internal/bus"
	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/google/uuid"
)

// EventHandler is the ingestion boundary for the content engine: it accepts
// a domain event and publishes it onto the in-process bus. Delivery is
// fully decoupled from this request; failures downstream never surface
// here.
type EventHandler struct {
	bus *bus.Bus
}

func NewEventHandler(b *bus.Bus) *EventHandler {
	return &EventHandler{bus: b}
}

type publishEventRequest struct {
	Event    string         `json:"event"`
	EntityID string         `json:"entity_id"`
	Data     map[string]any `json:"data,omitempty"`
}

type publishEventResponse struct {
	EventID string `json:"event_id"`
	Event   string `json:"event"`
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := domain.EventKind(req.Event)
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "unknown event: "+req.Event)
		return
	}
	if req.EntityID == "" {
		respondError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	ev := domain.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityID:   req.EntityID,
		Data:       req.Data,
		OccurredAt: time.Now(),
	}

	// Handlers outlive this response; detach them from the request
	// context so returning 202 does not cancel dispatch.
	h.bus.Publish(context.WithoutCancel(r.Context()), ev)

	respondJSON(w, http.StatusAccepted, publishEventResponse{
		EventID: ev.ID,
		Event:   string(kind),
	})
}
