// Package statusapi exposes the read-only status view and control surface
// of spec §6 over HTTP, the way the teacher's internal/server.Server wires
// chi routes over a bundle of module handlers instead of package globals.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nyxtrade/momentum-trader/internal/app"
	"github.com/nyxtrade/momentum-trader/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds the HTTP server's tunables.
type Config struct {
	Port int
}

// Server hosts the status view, control endpoints, the inbound
// notifier-reply webhook, and the Prometheus metrics exposition.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	app    *app.Application
}

// New builds a Server bound to one Application.
func New(cfg Config, application *app.Application, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    log.With().Str("component", "statusapi").Logger(),
		app:    application,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/status", func(r chi.Router) {
		r.Get("/", s.handleStatus)
		r.Get("/watchlist", s.handleWatchlist)
		r.Get("/positions", s.handlePositions)
		r.Get("/decisions", s.handleDecisions)
	})

	s.router.Route("/control", func(r chi.Router) {
		r.Post("/pause", s.handleControl(scheduler.CmdPauseTrading))
		r.Post("/resume", s.handleControl(scheduler.CmdResumeTrading))
		r.Post("/force-screen", s.handleControl(scheduler.CmdForceScreen))
		r.Post("/shutdown", s.handleControl(scheduler.CmdRequestShutdown))
	})

	s.router.Post("/webhook/reply", s.app.Notifier.ReceiveReply)
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("statusapi: listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "momentum-trader",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := s.app.Broker.GetAccount(ctx)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	positions, err := s.app.Broker.ListPositions(ctx)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session":         s.app.Clock.Classify(),
		"account":         account,
		"open_positions":  len(positions),
		"watchlist_size":  len(s.app.CurrentWatchlist()),
		"weights_version": s.app.Weights.Snapshot().Version,
	})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.CurrentWatchlist())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.app.Broker.ListPositions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	decisions, err := s.app.Journal.QueryDecisions(r.Context(), "", limit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleControl(cmd scheduler.ControlCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.app.Scheduler.Submit(cmd)
		s.writeJSON(w, http.StatusAccepted, map[string]string{"command": string(cmd)})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("statusapi: failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
