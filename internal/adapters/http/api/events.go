// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/finbrief/internal/domain/model"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	RecordEvent(ctx context.Context, ev model.BotEvent)
	FlushEvents(ctx context.Context, force bool) int
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w", op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w", op, err))
		return
	}

	// Buffered, not yet durable; the buffer's triggers decide when it lands.
	h.deps.RecordEvent(r.Context(), req.toModel())
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "buffered"})
}

// HandleFlush handles POST /events/flush requests, forcing the buffer out.
func (h *EventsHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	written := h.deps.FlushEvents(r.Context(), true)
	writeJSON(w, http.StatusOK, flushResponse{Written: written})
}
