package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/middleware"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// pixelGIF is a transparent 1x1 GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler is the public collector that tracked emails call back.
type TrackingHandler struct {
	workspace *workspace.Workspace
	logger    *logger.Logger
}

// NewTrackingHandler creates a new tracking handler.
func NewTrackingHandler(ws *workspace.Workspace, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		workspace: ws,
		logger:    logger.OrGlobal(log).Named("tracking"),
	}
}

// Routes mounts the collector endpoints on r.
func (h *TrackingHandler) Routes(r chi.Router) {
	r.Get("/o/{leadId}/{emailId}", h.Open)
	r.Get("/c/{leadId}/{emailId}", h.Click)
}

// Open handles GET /t/o/{leadId}/{emailId}
// The pixel is served even when the open cannot be recorded.
func (h *TrackingHandler) Open(w http.ResponseWriter, r *http.Request) {
	leadID, emailID := chi.URLParam(r, "leadId"), chi.URLParam(r, "emailId")

	if _, err := h.workspace.SimulateOpen(r.Context(), leadID, emailID); err != nil {
		h.logger.Debug("open not recorded",
			zap.String("lead_id", leadID),
			zap.String("email_id", emailID),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// Click handles GET /t/c/{leadId}/{emailId}?u=<url>
// Only links that appear in the email sent to the lead are followed.
func (h *TrackingHandler) Click(w http.ResponseWriter, r *http.Request) {
	leadID, emailID := chi.URLParam(r, "leadId"), chi.URLParam(r, "emailId")
	target := r.URL.Query().Get("u")

	if err := middleware.ValidateRedirectURL(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.workspace.TrackClick(r.Context(), leadID, emailID, target); err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			h.logger.Debug("click rejected",
				zap.String("lead_id", leadID),
				zap.String("email_id", emailID),
				zap.Error(err),
			)
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		h.logger.Error("failed to record click", zap.String("lead_id", leadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record click")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}
