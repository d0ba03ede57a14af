package handler

import (
	"context"
	"net/http"
	"time"

	natsclient "github.com/leadproton/server/internal/nats"
	"github.com/leadproton/server/internal/store"
)

// ServerName is reported by the health endpoints.
const ServerName = "LeadProton Server"

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      store.KV
	natsClient *natsclient.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// the change bridge is disabled.
func NewHealthHandler(kv store.KV, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		store:      kv,
		natsClient: natsClient,
	}
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(ServerName + " is running"))
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"name":   ServerName,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store unavailable",
		})
		return
	}

	// NATS is optional; when configured it must be connected
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
