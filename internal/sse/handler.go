// Package sse bridges the event bus to Server-Sent Events. Each connection
// holds its own bus subscription for as long as the client stays connected;
// a client that joins after a publish never sees that event.
package sse

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/librisapp/libris-server/internal/bus"
)

const (
	heartbeatInterval = 30 * time.Second
	writeDeadline     = 60 * time.Second
)

// Handler streams one bus topic to SSE clients.
type Handler struct {
	bus    *bus.Bus
	topic  bus.Topic
	logger *slog.Logger
}

// NewHandler creates an SSE handler for the given topic.
func NewHandler(eventBus *bus.Bus, topic bus.Topic, logger *slog.Logger) *Handler {
	return &Handler{
		bus:    eventBus,
		topic:  topic,
		logger: logger,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before announcing the connection so no event published after
	// the announcement can be missed.
	sub := h.bus.Subscribe(h.topic)
	defer sub.Cancel()

	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"topic": string(h.topic),
	}); err != nil {
		h.logger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				// Bus shut down.
				h.logger.Info("event stream closed")
				return
			}
			if err := h.sendEvent(w, rc, string(event.Topic), event.Payload); err != nil {
				// Client disconnect is normal, not an error condition.
				h.logger.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			if err := h.sendEvent(w, rc, "heartbeat", map[string]string{
				"time": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				h.logger.Info("client disconnected during heartbeat")
				return
			}

		case <-ctx.Done():
			h.logger.Info("client context canceled")
			return
		}
	}
}

// sendEvent writes a single SSE frame and flushes it.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset the write deadline after each successful write so an idle but
	// healthy connection is not torn down.
	return rc.SetWriteDeadline(time.Now().Add(writeDeadline))
}
