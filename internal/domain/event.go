package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies one of the content lifecycle events this subsystem
// delivers. The set is closed: the dispatcher subscribes to exactly these.
type EventKind string

const (
	ContentCreated   EventKind = "content.created"
	ContentUpdated   EventKind = "content.updated"
	ContentDeleted   EventKind = "content.deleted"
	ContentPublished EventKind = "content.published"
)

// Kinds returns all known event kinds in a stable order.
func Kinds() []EventKind {
	return []EventKind{ContentCreated, ContentUpdated, ContentDeleted, ContentPublished}
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case ContentCreated, ContentUpdated, ContentDeleted, ContentPublished:
		return true
	}
	return false
}

func (k EventKind) String() string {
	return string(k)
}

// Event is a domain fact emitted by the content engine. It is the input to
// the dispatcher; everything downstream works off the delivery record's
// payload snapshot instead.
type Event struct {
	ID         string         `json:"id"`
	Kind       EventKind      `json:"kind"`
	EntityID   string         `json:"entity_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Envelope is the canonical outbound payload:
//
//	{"event": "...", "timestamp": "...", "data": {"entityId": "...", ...}}
//
// It is serialized exactly once, when the delivery record is created.
// Retries resend the stored bytes verbatim so the signature is stable
// across attempts.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEnvelope builds the canonical envelope for an event. The entity id is
// merged into data under "entityId".
func NewEnvelope(ev Event) Envelope {
	data := make(map[string]any, len(ev.Data)+1)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["entityId"] = ev.EntityID

	return Envelope{
		Event:     string(ev.Kind),
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Bytes returns the envelope's canonical JSON encoding.
func (e Envelope) Bytes() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return b, nil
}
