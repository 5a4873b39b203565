package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/p-arndt/labkasten/internal/config"
	"github.com/p-arndt/labkasten/internal/driver"
)

type Server struct {
	cfg      *config.Config
	manager  SessionService
	catalog  CatalogService
	logger   *slog.Logger
	mux      *http.ServeMux
	limiter  *ownerLimiter
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, mgr SessionService, cat CatalogService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		manager: mgr,
		catalog: cat,
		logger:  logger,
		mux:     http.NewServeMux(),
		limiter: newOwnerLimiter(cfg.Exec.RatePerMinute, cfg.Exec.Burst),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.authMiddleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v1/labs", s.handleListLabs)
	s.mux.HandleFunc("GET /v1/labs/{id}", s.handleGetLab)
	s.mux.HandleFunc("POST /v1/labs/{id}/start", s.handleStart(labKey))
	s.mux.HandleFunc("POST /v1/labs/{id}/stop", s.handleStop(labKey))
	s.mux.HandleFunc("GET /v1/labs/{id}/status", s.handleStatus(labKey))
	s.mux.HandleFunc("POST /v1/labs/{id}/exec", s.handleExec(labKey))
	s.mux.HandleFunc("GET /v1/labs/{id}/terminal", s.handleTerminal(labKey))

	s.mux.HandleFunc("POST /v1/workstation/start", s.handleStart(workstationKey))
	s.mux.HandleFunc("POST /v1/workstation/stop", s.handleStop(workstationKey))
	s.mux.HandleFunc("GET /v1/workstation/status", s.handleStatus(workstationKey))
	s.mux.HandleFunc("POST /v1/workstation/exec", s.handleExec(workstationKey))
	s.mux.HandleFunc("GET /v1/workstation/terminal", s.handleTerminal(workstationKey))

	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)

	// Health check (no auth)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Ping(r.Context()); err != nil {
		s.logger.Warn("health: runtime unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "degraded",
			"runtime": "unavailable",
			"message": driver.Diagnostic(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "runtime": "available"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
