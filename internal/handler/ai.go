package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/middleware"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// AIHandler handles the /api/ai endpoints. Gateway failures surface as the
// gateway's fallback values, so these handlers only reject bad input.
type AIHandler struct {
	gateway   *gateway.Gateway
	workspace *workspace.Workspace
	logger    *logger.Logger
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(ws *workspace.Workspace, log *logger.Logger) *AIHandler {
	return &AIHandler{
		gateway:   ws.Gateway(),
		workspace: ws,
		logger:    logger.OrGlobal(log),
	}
}

// Routes mounts the AI endpoints on r.
func (h *AIHandler) Routes(r chi.Router) {
	r.Post("/email-patterns", h.EmailPatterns)
	r.Post("/company-info", h.CompanyInfo)
	r.Post("/strategy", h.Strategy)
	r.Post("/subject-lines", h.SubjectLines)
	r.Post("/email-body", h.EmailBody)
	r.Post("/personalize", h.Personalize)
	r.Post("/company-location", h.CompanyLocation)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/", h.OpenChat)
		r.Get("/{id}", h.ChatHistory)
		r.Delete("/{id}", h.CloseChat)
		r.Post("/{id}/messages", h.SendChat)
		r.Post("/{id}/stream", h.StreamChat)
	})
}

// EmailPatterns handles POST /api/ai/email-patterns
func (h *AIHandler) EmailPatterns(w http.ResponseWriter, r *http.Request) {
	var req model.EmailPatternsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "firstName, lastName, and domain are required")
		return
	}

	patterns := h.gateway.EmailPatterns(r.Context(), req.FirstName, req.LastName, req.Domain)
	writeJSON(w, http.StatusOK, &model.EmailPatternsResponse{Patterns: patterns})
}

// CompanyInfo handles POST /api/ai/company-info
func (h *AIHandler) CompanyInfo(w http.ResponseWriter, r *http.Request) {
	var req model.CompanyInfoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	info := h.gateway.CompanyInfo(r.Context(), req.Domain)
	writeJSON(w, http.StatusOK, &info)
}

// Strategy handles POST /api/ai/strategy
func (h *AIHandler) Strategy(w http.ResponseWriter, r *http.Request) {
	var req model.StrategyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "firstName, lastName, and companyName are required")
		return
	}

	strategy := h.gateway.StrategicAnalysis(r.Context(), gateway.StrategyInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Role:        req.Role,
	})
	writeJSON(w, http.StatusOK, &model.StrategyResponse{
		Strategy: strategy,
		Score:    gateway.ScoreLead(req.FirstName, req.LastName, req.CompanyName, req.Role),
	})
}

// SubjectLines handles POST /api/ai/subject-lines
func (h *AIHandler) SubjectLines(w http.ResponseWriter, r *http.Request) {
	var req model.SubjectLinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lines, err := h.workspace.SuggestSubjectLines(r.Context(), req.Body)
	if err != nil {
		writeWorkspaceError(w, h.logger, "suggest subject lines", err)
		return
	}
	writeJSON(w, http.StatusOK, &model.SubjectLinesResponse{SubjectLines: lines})
}

// EmailBody handles POST /api/ai/email-body
func (h *AIHandler) EmailBody(w http.ResponseWriter, r *http.Request) {
	var req model.EmailBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := h.workspace.GenerateBody(r.Context(), req.Prompt)
	if err != nil {
		writeWorkspaceError(w, h.logger, "generate email body", err)
		return
	}
	writeJSON(w, http.StatusOK, &model.TextResponse{Text: text})
}

// Personalize handles POST /api/ai/personalize
func (h *AIHandler) Personalize(w http.ResponseWriter, r *http.Request) {
	var req model.PersonalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := h.workspace.Personalize(r.Context(), req.LeadID, req.Body)
	if err != nil {
		writeWorkspaceError(w, h.logger, "personalize email", err)
		return
	}
	writeJSON(w, http.StatusOK, &model.TextResponse{Text: text})
}

// CompanyLocation handles POST /api/ai/company-location
func (h *AIHandler) CompanyLocation(w http.ResponseWriter, r *http.Request) {
	var req model.CompanyLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "companyName is required")
		return
	}
	if err := middleware.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := h.gateway.CompanyLocation(r.Context(), req.CompanyName, req.Latitude, req.Longitude)
	writeJSON(w, http.StatusOK, &loc)
}

// chatSession is returned when a chat is opened or inspected.
type chatSession struct {
	SessionID string              `json:"sessionId"`
	History   []model.ChatMessage `json:"history"`
}

// OpenChat handles POST /api/ai/chat
func (h *AIHandler) OpenChat(w http.ResponseWriter, r *http.Request) {
	id, history := h.workspace.Chats.Open()
	writeJSON(w, http.StatusCreated, &chatSession{SessionID: id, History: history})
}

// ChatHistory handles GET /api/ai/chat/{id}
func (h *AIHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.workspace.Chats.History(id)
	if err != nil {
		writeWorkspaceError(w, h.logger, "load chat", err)
		return
	}
	writeJSON(w, http.StatusOK, &chatSession{SessionID: id, History: history})
}

// CloseChat handles DELETE /api/ai/chat/{id}
func (h *AIHandler) CloseChat(w http.ResponseWriter, r *http.Request) {
	h.workspace.Chats.Close(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// SendChat handles POST /api/ai/chat/{id}/messages
func (h *AIHandler) SendChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateChatMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, history, err := h.workspace.Chats.Send(r.Context(), id, req.Message, nil)
	if err != nil {
		writeWorkspaceError(w, h.logger, "send chat message", err)
		return
	}
	writeJSON(w, http.StatusOK, &model.ChatResponse{SessionID: id, Reply: reply, History: history})
}
