package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/middleware"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 30 * time.Second

// HeartbeatEvent is sent periodically on idle streams.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// StreamChat handles POST /api/ai/chat/{id}/stream
// The reply is streamed as token events followed by message_complete.
func (h *AIHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req model.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateChatMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.workspace.Chats.History(id); err != nil {
		writeWorkspaceError(w, h.logger, "load chat", err)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	reply, history, err := h.workspace.Chats.Send(ctx, id, req.Message, func(token string, index int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
			Token: token,
			Index: index,
		})
	})
	if err != nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "stream_error",
			Message: err.Error(),
		})
		return
	}

	sendSSEEvent(w, flusher, "message_complete", &model.ChatResponse{
		SessionID: id,
		Reply:     reply,
		History:   history,
	})
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

// ChangesHandler streams workspace change notifications so open clients can
// refresh, including changes made by other processes.
type ChangesHandler struct {
	bus       *events.Bus
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewChangesHandler creates a change stream handler.
func NewChangesHandler(bus *events.Bus, log *logger.Logger) *ChangesHandler {
	return &ChangesHandler{
		bus:       bus,
		logger:    logger.OrGlobal(log),
		heartbeat: heartbeatInterval,
	}
}

// Stream handles GET /api/workspace/changes
// Supports ?topic=<key> to receive a single collection.
func (h *ChangesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic := r.URL.Query().Get("topic")
	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// Bus handlers run on the publisher's goroutine, so changes are handed
	// over through a buffered channel and dropped when the client lags.
	changes := make(chan events.Change, 64)
	unsubscribe := h.bus.Subscribe(topic, func(c events.Change) {
		select {
		case changes <- c:
		default:
			log.Warn("dropping change for slow SSE client", zap.String("topic", c.Topic))
		}
	})
	defer unsubscribe()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"topic": topic,
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return
		case c := <-changes:
			if err := sendSSEEvent(w, flusher, "change", changeEvent(c)); err != nil {
				return
			}
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// ChangeEvent is the client view of a bus change.
type ChangeEvent struct {
	Topic   string          `json:"topic"`
	LeadID  string          `json:"leadId,omitempty"`
	Kind    string          `json:"kind"`
	Origin  events.Origin   `json:"origin"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func changeEvent(c events.Change) *ChangeEvent {
	ev := &ChangeEvent{Topic: c.Topic, LeadID: c.LeadID, Kind: c.Kind, Origin: c.Origin}
	if json.Valid(c.Payload) {
		ev.Payload = c.Payload
	}
	return ev
}

// startSSE sets the event-stream headers. It writes a 500 and returns false
// when the writer cannot flush.
func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server's write timeout.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
