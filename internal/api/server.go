// Package api serves the relay gateway and the single-session dashboard over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/api/middleware"
	"github.com/khanhnv2901/gatespy/internal/lifecycle"
	"github.com/khanhnv2901/gatespy/internal/relay"
)

type Config struct {
	Gateway     *relay.Gateway
	Dashboard   *lifecycle.Controller
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
}

type Server struct {
	cfg      Config
	router   chi.Router
	limiters *rateLimiterMap
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		limiters: newRateLimiterMap(),
	}
	srv.upgrader = websocket.Upgrader{CheckOrigin: srv.originAllowed}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiters.stop()
}

func (s *Server) routes() {
	r := s.router

	// RequestID -> Logging -> RateLimit -> CORS -> Handler
	r.Use(middleware.RequestID, s.withLogging, s.withRateLimit, s.withCORS)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	if s.cfg.Gateway != nil {
		r.Handle("/analyze", s.cfg.Gateway)
		r.Handle("/api/analyze", s.cfg.Gateway)
	}

	if s.cfg.Dashboard != nil {
		r.Get("/", s.handleDashboard)
		r.Route("/dashboard", func(r chi.Router) {
			r.Post("/analyze", s.handleDashboardAnalyze)
			r.Get("/state", s.handleDashboardState)
			r.Get("/report.json", s.handleReportJSON)
			r.Get("/report.pdf", s.handleReportPDF)
			r.Get("/events", s.handleDashboardEvents)
		})
		r.Get("/ws/dashboard", s.handleDashboardWS)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Gateway != nil {
		if err := s.cfg.Gateway.Ping(r.Context()); err != nil {
			s.requestLogger(r).Warn("scanner_unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "scanner unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		s.cfg.Logger.Debug("stream write failed", zap.Error(err))
		return false
	}
	return true
}
