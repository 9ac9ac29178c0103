package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contentloop/webhook-relay/internal/bus"
	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventBus(t *testing.T) (*bus.Bus, chan domain.Event) {
	t.Helper()

	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	got := make(chan domain.Event, 1)
	for _, kind := range domain.Kinds() {
		b.Subscribe(kind, func(ctx context.Context, ev domain.Event) error {
			got <- ev
			return nil
		})
	}
	return b, got
}

func publish(t *testing.T, h *EventHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Publish(w, req)
	return w
}

func TestEventHandler_PublishAccepted(t *testing.T) {
	b, got := newEventBus(t)
	h := NewEventHandler(b)

	w := publish(t, h, `{"event":"content.created","entity_id":"article-9","data":{"title":"Hello"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		EventID string `json:"event_id"`
		Event   string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, "content.created", resp.Event)

	b.Wait()
	ev := <-got
	assert.Equal(t, resp.EventID, ev.ID)
	assert.Equal(t, domain.ContentCreated, ev.Kind)
	assert.Equal(t, "article-9", ev.EntityID)
	assert.Equal(t, "Hello", ev.Data["title"])
}

func TestEventHandler_RejectsUnknownKind(t *testing.T) {
	b, got := newEventBus(t)
	h := NewEventHandler(b)

	w := publish(t, h, `{"event":"content.archived","entity_id":"article-9"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	b.Wait()
	select {
	case ev := <-got:
		t.Fatalf("nothing should reach the bus, got %+v", ev)
	default:
	}
}

func TestEventHandler_RequiresEntityID(t *testing.T) {
	b, _ := newEventBus(t)
	h := NewEventHandler(b)

	w := publish(t, h, `{"event":"content.created"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandler_RejectsMalformedBody(t *testing.T) {
	b, _ := newEventBus(t)
	h := NewEventHandler(b)

	w := publish(t, h, `{"event":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidTargetURL(t *testing.T) {
	valid := []string{
		"http://example.com/hook",
		"https://example.com:8443/hook?token=x",
	}
	for _, u := range valid {
		assert.True(t, validTargetURL(u), "should accept %q", u)
	}

	invalid := []string{
		"",
		"example.com/hook",
		"ftp://example.com/hook",
		"https://",
		"://bad",
	}
	for _, u := range invalid {
		assert.False(t, validTargetURL(u), "should reject %q", u)
	}
}
