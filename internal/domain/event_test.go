package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestEventKind_Valid(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}

	for _, k := range []EventKind{"", "content.archived", "order.created", "CONTENT.CREATED"} {
		if k.Valid() {
			t.Errorf("%q should not be valid", k)
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	ev := Event{
		ID:         "evt-1",
		Kind:       ContentUpdated,
		EntityID:   "article-42",
		Data:       map[string]any{"title": "Hello", "revision": float64(3)},
		OccurredAt: time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600)),
	}

	env := NewEnvelope(ev)

	if env.Event != "content.updated" {
		t.Errorf("event = %q", env.Event)
	}
	// Timestamps are normalized to UTC.
	if env.Timestamp != "2026-03-01T11:30:00Z" {
		t.Errorf("timestamp = %q", env.Timestamp)
	}
	if env.Data["entityId"] != "article-42" {
		t.Errorf("entityId = %v", env.Data["entityId"])
	}
	if env.Data["title"] != "Hello" {
		t.Errorf("title = %v", env.Data["title"])
	}
}

func TestNewEnvelope_DoesNotMutateEventData(t *testing.T) {
	ev := Event{
		Kind:     ContentCreated,
		EntityID: "article-1",
		Data:     map[string]any{"title": "Hello"},
	}

	NewEnvelope(ev)

	if _, ok := ev.Data["entityId"]; ok {
		t.Error("envelope construction must not write into the event's data map")
	}
}

func TestNewEnvelope_NilData(t *testing.T) {
	ev := Event{
		Kind:       ContentDeleted,
		EntityID:   "article-1",
		OccurredAt: time.Now(),
	}

	env := NewEnvelope(ev)

	if env.Data["entityId"] != "article-1" {
		t.Errorf("entityId = %v", env.Data["entityId"])
	}
}

func TestEnvelope_BytesIsStable(t *testing.T) {
	ev := Event{
		Kind:       ContentPublished,
		EntityID:   "article-7",
		Data:       map[string]any{"b": 2, "a": 1, "c": 3},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env := NewEnvelope(ev)

	b1, err := env.Bytes()
	if err != nil {
		t.Fatalf("bytes failed: %v", err)
	}
	b2, err := env.Bytes()
	if err != nil {
		t.Fatalf("bytes failed: %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Error("serializing the same envelope twice should produce identical bytes")
	}

	var decoded map[string]any
	if err := json.Unmarshal(b1, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, field := range []string{"event", "timestamp", "data"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing %q field", field)
		}
	}
}
