package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/middleware"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// maxImportBytes bounds uploaded CSV files.
const maxImportBytes = 10 << 20

// WorkspaceHandler handles the /api/workspace endpoints.
type WorkspaceHandler struct {
	workspace *workspace.Workspace
	logger    *logger.Logger
}

// NewWorkspaceHandler creates a new workspace handler.
func NewWorkspaceHandler(ws *workspace.Workspace, log *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspace: ws,
		logger:    logger.OrGlobal(log),
	}
}

// Routes mounts the workspace endpoints on r.
func (h *WorkspaceHandler) Routes(r chi.Router) {
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.ListLeads)
		r.Post("/", h.SaveLead)
		r.Post("/delete", h.DeleteLeads)
		r.Post("/status", h.BulkStatus)
		r.Post("/import", h.ImportCSV)
		r.Get("/export", h.ExportCSV)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(validateIDParam)
			r.Get("/", h.GetLead)
			r.Put("/", h.SaveLead)
			r.Delete("/", h.DeleteLead)
			r.Get("/activities", h.Activities)
			r.Post("/notes", h.AddNote)
			r.Post("/compose", h.Compose)
			r.Post("/follow-ups", h.SendFollowUp)
			r.Post("/opens", h.SimulateOpen)
			r.Post("/clicks", h.RecordClick)
			r.Get("/insights", h.Insights)
			r.Post("/location", h.FindLocation)
		})
	})

	r.Route("/scheduled", func(r chi.Router) {
		r.Get("/", h.ListScheduled)
		r.Post("/deliver", h.DeliverDue)
		r.Delete("/{id}", h.CancelScheduled)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.SaveTemplate)
		r.Get("/{id}", h.GetTemplate)
		r.Put("/{id}", h.SaveTemplate)
		r.Delete("/{id}", h.DeleteTemplate)
	})

	r.Post("/discovery", h.Discover)
	r.Post("/discovery/leads", h.AddDiscoveredLead)
	r.Get("/analytics", h.Analytics)
}

func validateIDParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := middleware.ValidateID(chi.URLParam(r, "id")); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListLeads handles GET /api/workspace/leads
// Query: search, sort (field name or lastActivity), order (asc|desc).
func (h *WorkspaceHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := workspace.ListQuery{
		Search: q.Get("search"),
		SortBy: q.Get("sort"),
		Desc:   q.Get("order") == "desc",
	}

	leads, err := h.workspace.ListLeads(r.Context(), query)
	if err != nil {
		writeWorkspaceError(w, h.logger, "list leads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"total": len(leads),
	})
}

// GetLead handles GET /api/workspace/leads/{id}
func (h *WorkspaceHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.workspace.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWorkspaceError(w, h.logger, "load lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// SaveLead handles POST /api/workspace/leads and PUT /api/workspace/leads/{id}
func (h *WorkspaceHandler) SaveLead(w http.ResponseWriter, r *http.Request) {
	var lead model.Lead
	if !decodeJSON(w, r, &lead) {
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		lead.ID = id
	}

	saved, created, err := h.workspace.SaveLead(r.Context(), lead)
	if err != nil {
		writeWorkspaceError(w, h.logger, "save lead", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

type idsRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status,omitempty"`
}

// DeleteLeads handles POST /api/workspace/leads/delete
func (h *WorkspaceHandler) DeleteLeads(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.workspace.DeleteLeads(r.Context(), req.IDs...)
	if err != nil {
		writeWorkspaceError(w, h.logger, "delete leads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// DeleteLead handles DELETE /api/workspace/leads/{id}
func (h *WorkspaceHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.workspace.DeleteLeads(r.Context(), id)
	if err != nil {
		writeWorkspaceError(w, h.logger, "delete lead", err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("lead %s: %s", id, workspace.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkStatus handles POST /api/workspace/leads/status
func (h *WorkspaceHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.workspace.BulkStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		writeWorkspaceError(w, h.logger, "update lead status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// ImportCSV handles POST /api/workspace/leads/import
// Accepts a multipart upload in the "file" field, or a raw CSV body with
// the file name in ?filename=.
func (h *WorkspaceHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var (
		src      io.Reader = r.Body
		filename           = r.URL.Query().Get("filename")
	)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		src = file
		filename = header.Filename
	}
	if filename == "" {
		filename = "upload.csv"
	}

	res, err := h.workspace.ImportCSV(r.Context(), src, filename)
	if err != nil {
		writeWorkspaceError(w, h.logger, "import leads", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportCSV handles GET /api/workspace/leads/export
// Query: ids, a comma-separated selection; empty exports every lead.
func (h *WorkspaceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	name := fmt.Sprintf("leads_export_%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if err := h.workspace.ExportCSV(r.Context(), w, ids...); err != nil {
		h.logger.Error("failed to export leads", zap.Error(err))
	}
}

// Activities handles GET /api/workspace/leads/{id}/activities
func (h *WorkspaceHandler) Activities(w http.ResponseWriter, r *http.Request) {
	acts, err := h.workspace.LeadActivities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWorkspaceError(w, h.logger, "load activities", err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// AddNote handles POST /api/workspace/leads/{id}/notes
func (h *WorkspaceHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	act, err := h.workspace.AddNote(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeWorkspaceError(w, h.logger, "add note", err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// Compose handles POST /api/workspace/leads/{id}/compose
func (h *WorkspaceHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"templateId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := h.workspace.Compose(r.Context(), chi.URLParam(r, "id"), req.TemplateID)
	if err != nil {
		writeWorkspaceError(w, h.logger, "compose follow-up", err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// SendFollowUp handles POST /api/workspace/leads/{id}/follow-ups
func (h *WorkspaceHandler) SendFollowUp(w http.ResponseWriter, r *http.Request) {
	var req workspace.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.LeadID = chi.URLParam(r, "id")

	res, err := h.workspace.SendFollowUp(r.Context(), req)
	if err != nil {
		writeWorkspaceError(w, h.logger, "send follow-up", err)
		return
	}
	status := http.StatusCreated
	if res.Scheduled {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

type emailEventRequest struct {
	EmailID string `json:"emailId"`
	URL     string `json:"url,omitempty"`
}

// SimulateOpen handles POST /api/workspace/leads/{id}/opens
func (h *WorkspaceHandler) SimulateOpen(w http.ResponseWriter, r *http.Request) {
	var req emailEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	recorded, err := h.workspace.SimulateOpen(r.Context(), chi.URLParam(r, "id"), req.EmailID)
	if err != nil {
		writeWorkspaceError(w, h.logger, "record open", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": recorded})
}

// RecordClick handles POST /api/workspace/leads/{id}/clicks
func (h *WorkspaceHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var req emailEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	act, err := h.workspace.RecordClick(r.Context(), chi.URLParam(r, "id"), req.EmailID, req.URL)
	if err != nil {
		writeWorkspaceError(w, h.logger, "record click", err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// Insights handles GET /api/workspace/leads/{id}/insights
func (h *WorkspaceHandler) Insights(w http.ResponseWriter, r *http.Request) {
	res, err := h.workspace.Insights(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWorkspaceError(w, h.logger, "generate insights", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FindLocation handles POST /api/workspace/leads/{id}/location
func (h *WorkspaceHandler) FindLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.workspace.FindLocation(r.Context(), chi.URLParam(r, "id"), req.Latitude, req.Longitude)
	if err != nil {
		writeWorkspaceError(w, h.logger, "find location", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListScheduled handles GET /api/workspace/scheduled
func (h *WorkspaceHandler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workspace.ScheduledEmails(r.Context()))
}

// DeliverDue handles POST /api/workspace/scheduled/deliver
func (h *WorkspaceHandler) DeliverDue(w http.ResponseWriter, r *http.Request) {
	n, err := h.workspace.DeliverDue(r.Context())
	if err != nil {
		writeWorkspaceError(w, h.logger, "deliver scheduled emails", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

// CancelScheduled handles DELETE /api/workspace/scheduled/{id}
func (h *WorkspaceHandler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.CancelScheduled(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeWorkspaceError(w, h.logger, "cancel scheduled email", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /api/workspace/templates
func (h *WorkspaceHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workspace.ListTemplates(r.Context()))
}

// GetTemplate handles GET /api/workspace/templates/{id}
func (h *WorkspaceHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.workspace.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWorkspaceError(w, h.logger, "load template", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SaveTemplate handles POST /api/workspace/templates and PUT /api/workspace/templates/{id}
func (h *WorkspaceHandler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if !decodeJSON(w, r, &t) {
		return
	}
	status := http.StatusCreated
	if id := chi.URLParam(r, "id"); id != "" {
		if _, err := h.workspace.GetTemplate(r.Context(), id); err != nil {
			writeWorkspaceError(w, h.logger, "load template", err)
			return
		}
		t.ID = id
		status = http.StatusOK
	}

	saved, err := h.workspace.SaveTemplate(r.Context(), t)
	if err != nil {
		writeWorkspaceError(w, h.logger, "save template", err)
		return
	}
	writeJSON(w, status, saved)
}

// DeleteTemplate handles DELETE /api/workspace/templates/{id}
func (h *WorkspaceHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeWorkspaceError(w, h.logger, "delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Discover handles POST /api/workspace/discovery
func (h *WorkspaceHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req model.EmailPatternsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.workspace.Discover(r.Context(), req.FirstName, req.LastName, req.Domain)
	if err != nil {
		writeWorkspaceError(w, h.logger, "discover", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddDiscoveredLead handles POST /api/workspace/discovery/leads
func (h *WorkspaceHandler) AddDiscoveredLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result workspace.DiscoveryResult `json:"result"`
		Email  string                    `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	lead, err := h.workspace.AddDiscoveredLead(r.Context(), req.Result, req.Email)
	if err != nil {
		writeWorkspaceError(w, h.logger, "add discovered lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// Analytics handles GET /api/workspace/analytics
func (h *WorkspaceHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workspace.Analytics(r.Context()))
}
