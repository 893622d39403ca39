package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams a locator session's unsolicited updates as
// server-sent events.
type SSEHandler struct {
	bus       providers.LocatorEventBus
	exists    func(sessionID string) bool
	heartbeat time.Duration

	active    atomic.Int64
	delivered atomic.Int64
}

// NewSSEHandler serves streams from bus. A non-nil exists rejects streams
// for sessions this process does not know; the split stream server passes
// nil because sessions live in another process.
func NewSSEHandler(bus providers.LocatorEventBus, exists func(sessionID string) bool) *SSEHandler {
	return &SSEHandler{bus: bus, exists: exists, heartbeat: defaultHeartbeat}
}

// SetHeartbeat overrides the keep-alive interval
func (h *SSEHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamLocatorEvents handles GET /api/locator/sessions/{id}/stream
func (h *SSEHandler) StreamLocatorEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	if h.exists != nil && !h.exists(sessionID) {
		respondWithError(w, http.StatusNotFound, "session not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := observability.LoggerFromContext(r.Context()).With().Str("session_id", sessionID).Logger()
	events, err := h.bus.Subscribe(r.Context(), sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to subscribe to locator events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.active.Add(1)
	defer h.active.Add(-1)

	writeSSE(w, "connected", "", map[string]any{"session_id": sessionID, "timestamp": time.Now()})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Locator stream client disconnected")
			return
		case <-ticker.C:
			// comment lines keep proxies from timing the stream out
			fmt.Fprintf(w, ": heartbeat %d\n\n", time.Now().Unix())
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				writeSSE(w, "closed", "", map[string]any{"session_id": sessionID})
				flusher.Flush()
				return
			}
			if event == nil {
				continue
			}
			writeSSE(w, string(event.EventType), event.ID, event)
			flusher.Flush()
			h.delivered.Add(1)
		}
	}
}

// StreamStats handles GET /api/stream/stats
func (h *SSEHandler) StreamStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]int64{
		"active_streams":   h.active.Load(),
		"events_delivered": h.delivered.Load(),
	})
}

// ActiveStreams returns the number of open streams
func (h *SSEHandler) ActiveStreams() int {
	return int(h.active.Load())
}

func writeSSE(w io.Writer, name, id string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}
