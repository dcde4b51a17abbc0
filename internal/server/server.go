// Package server exposes the session HTTP API and the session websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/hub"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const userIDHeader = "X-User-ID"

type Server struct {
	cfg      *config.Config
	registry *session.Registry
	pipeline *session.Pipeline
	hub      *hub.Hub
	metrics  *metrics.Metrics
	router   chi.Router
	upgrader websocket.Upgrader

	// baseCtx outlives individual connections so an utterance in flight
	// finishes after its sender disconnects. It is cancelled by Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	log     *slog.Logger
}

func NewServer(cfg *config.Config, registry *session.Registry, pipeline *session.Pipeline, h *hub.Hub, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:      cfg,
		registry: registry,
		pipeline: pipeline,
		hub:      h,
		metrics:  m,
		baseCtx:  ctx,
		cancel:   cancel,
		log:      slog.With("component", "server"),
	}
	srv.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(srv.cors)

	r.Get("/health", srv.handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", srv.handleCreateSession)
		r.Get("/sessions/{code}", srv.handleGetSession)
		r.Post("/sessions/{code}/join", srv.handleJoinSession)
		r.Post("/sessions/{code}/end", srv.handleEndSession)
		r.Post("/sessions/{code}/cancel", srv.handleCancelSession)
		r.Get("/sessions/{code}/transcripts", srv.handleListTranscripts)
		r.Get("/users/{userID}/sessions", srv.handleListUserSessions)
	})
	r.Get("/ws/session/{code}", srv.handleWebSocket)

	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown closes every live connection, waits for receive loops to finish
// their current event, then cancels work still in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	defer s.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.cfg.OriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userIDHeader)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": s.hub.SessionCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps session errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, session.ErrNotFound.Error())
	case errors.Is(err, session.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, session.ErrForbidden.Error())
	case errors.Is(err, session.ErrInvalidStateTransition):
		writeErrorMessage(w, http.StatusConflict, session.ErrInvalidStateTransition.Error())
	case errors.Is(err, session.ErrSessionNotActive):
		writeErrorMessage(w, http.StatusConflict, session.ErrSessionNotActive.Error())
	case errors.Is(err, session.ErrInvalidModuleType):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrCodeGenerationExhausted):
		s.log.Error("session code space saturated", "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusServiceUnavailable, session.ErrCodeGenerationExhausted.Error())
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func requesterID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
