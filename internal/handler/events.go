package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/middleware"
	"github.com/nbsync/sync-server-go/internal/service"
	"github.com/nbsync/sync-server-go/internal/sse"
)

// EventsHandler streams session events over SSE. This is a delivery
// optimization: a client that never connects still discovers every update
// through the notifications endpoint.
type EventsHandler struct {
	broker         *sse.Broker
	sessionService *service.SessionService
}

func NewEventsHandler(broker *sse.Broker, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		sessionService: sessionService,
	}
}

// GET /v1/sessions/{code}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.sessionService.CheckAccess(r.Context(), *identity, code); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(code)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("code", code).
		Str("userId", identity.UserID).
		Msg("sse connection established")

	h.sendEvent(w, flusher, "connected", map[string]any{
		"code": code,
	})

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done:
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-client.Events:
			h.sendEvent(w, flusher, event.Type, event.Data)
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal sse event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
