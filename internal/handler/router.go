package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/middleware"
	natsclient "github.com/leadproton/server/internal/nats"
	"github.com/leadproton/server/internal/service"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// RouterConfig wires the HTTP surface. NATS may be nil.
type RouterConfig struct {
	Workspace *workspace.Workspace
	Leads     *service.LeadService
	Bus       *events.Bus
	Store     store.KV
	NATS      *natsclient.Client

	CORSOrigins       []string
	JWTSecret         func() string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger *logger.Logger
}

// NewRouter builds the server's route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	log := logger.OrGlobal(cfg.Logger)

	healthHandler := NewHealthHandler(cfg.Store, cfg.NATS)
	leadHandler := NewLeadHandler(cfg.Leads, log)
	aiHandler := NewAIHandler(cfg.Workspace, log)
	workspaceHandler := NewWorkspaceHandler(cfg.Workspace, log)
	changesHandler := NewChangesHandler(cfg.Bus, log)
	trackingHandler := NewTrackingHandler(cfg.Workspace, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecureHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Tracking collector; mail clients cannot authenticate
	r.Route("/t", trackingHandler.Routes)

	// API routes with authentication
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/leads", leadHandler.Routes)
		r.Route("/ai", aiHandler.Routes)
		r.Route("/workspace", func(r chi.Router) {
			r.Get("/changes", changesHandler.Stream)
			workspaceHandler.Routes(r)
		})
	})

	return r
}
