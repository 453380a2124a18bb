package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"tailscale.com/client/local"

	"github.com/claude/veloplan/internal/adapter"
	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/compliance"
	"github.com/claude/veloplan/internal/config"
	"github.com/claude/veloplan/internal/ingest"
	"github.com/claude/veloplan/internal/planner"
	"github.com/claude/veloplan/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db         *storage.DB
	catalog    *catalog.Catalog
	ingest     *ingest.Provider
	planner    planner.Config
	adapter    adapter.Config
	compliance compliance.Config
	log        *slog.Logger
	apiKey     string
	router     chi.Router
	whois      WhoIsClient
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, cat *catalog.Catalog, ingestProvider *ingest.Provider, cfg *config.Config, log *slog.Logger) *Server {
	s := &Server{
		db:         db,
		catalog:    cat,
		ingest:     ingestProvider,
		planner:    cfg.Planner,
		adapter:    cfg.Adapter,
		compliance: cfg.Compliance,
		log:        log,
		apiKey:     cfg.Auth.APIKey,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale attaches a tsnet local client so requests carry the caller's
// tailnet identity. Without it the server runs with a dev identity.
func (s *Server) SetTailscale(lc *local.Client) {
	s.whois = lc
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Write endpoints (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/athletes", s.handleUpsertAthlete)
			r.Post("/activities", s.handleCreateActivity)
			r.Post("/activities/import", s.handleImportActivities)
			r.Post("/plans/generate", s.handleGeneratePlan)
			r.Post("/plans/evaluate", s.handleEvaluatePlan)
			r.Post("/readiness", s.handleSubmitReadiness)
		})

		// Read endpoints (no auth; tsnet handles access)
		r.Get("/me", s.handleMe)
		r.Get("/athletes/{id}", s.handleGetAthlete)
		r.Get("/activities", s.handleQueryActivities)
		r.Get("/load", s.handleLoadHistory)
		r.Get("/load/forecast", s.handleLoadForecast)
		r.Get("/plans", s.handleListPlans)
		r.Get("/plans/{weekStart}", s.handleGetPlan)
		r.Get("/plans/{weekStart}/compliance", s.handleCompliance)
		r.Get("/readiness", s.handleGetReadiness)
		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
	})
}
