// Package server exposes the scheduler over a JSON HTTP API.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/logging"
	"github.com/lazypower/cadence/internal/metrics"
	"github.com/lazypower/cadence/internal/store"
)

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Manager
	MetricsPath  string
	RateLimit    RateLimitConfig
	SessionTTL   time.Duration
	DeckDefaults *fsrs.Parameters
}

// Server is the cadence HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	sessions *registry
	log      *slog.Logger
	metrics  *metrics.Manager
	defaults fsrs.Parameters
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server over db and the engine built on it.
func New(db *store.DB, eng *engine.Engine, version string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpManager()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	defaults := fsrs.DefaultParameters()
	if opts.DeckDefaults != nil {
		defaults = opts.DeckDefaults.Clone()
	}

	s := &Server{
		db:       db,
		engine:   eng,
		sessions: newRegistry(opts.SessionTTL, opts.Metrics),
		log:      opts.Logger,
		metrics:  opts.Metrics,
		defaults: defaults,
		version:  version,
		started:  time.Now(),
	}
	s.routes(opts)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(opts Options) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(tracing)
	r.Use(instrument(s.log, s.metrics))

	if s.metrics.Enabled() {
		r.Handle(opts.MetricsPath, s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(opts.RateLimit))

			r.Get("/decks", s.handleListDecks)
			r.Post("/decks", s.handleCreateDeck)
			r.Get("/decks/{deckID}/parameters", s.handleGetParameters)
			r.Put("/decks/{deckID}/parameters", s.handlePutParameters)
			r.Get("/decks/{deckID}/counts", s.handleDeckCounts)
			r.Get("/decks/{deckID}/cards", s.handleListCards)
			r.Post("/decks/{deckID}/cards", s.handleCreateCard)

			r.Get("/cards/{cardID}/preview", s.handlePreview)
			r.Post("/cards/{cardID}/forget", s.handleForget)
			r.Post("/cards/{cardID}/reschedule", s.handleReschedule)

			r.Post("/sessions", s.handleStartSession)
			r.Get("/sessions/{sessionID}/next", s.handleNext)
			r.Post("/sessions/{sessionID}/grade", s.handleGrade)
			r.Post("/sessions/{sessionID}/retry", s.handleRetry)
			r.Get("/sessions/{sessionID}/stats", s.handleSessionStats)
			r.Delete("/sessions/{sessionID}", s.handleEndSession)

			r.Get("/stats/daily", s.handleDailyStats)
			r.Get("/stats/summary", s.handleSummary)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.db.Path,
		"sessions": s.sessions.len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
