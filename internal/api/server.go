// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves the local observability endpoints: flow listing,
// daemon status and Prometheus metrics. It binds to loopback by default
// and carries no authentication; it must not be exposed on the WAN.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/tinmark/internal/brand"
	"grimm.is/tinmark/internal/conntrack"
	"grimm.is/tinmark/internal/logging"
)

// StatusFunc reports the daemon's current status document.
type StatusFunc func() any

// Server is the HTTP API server.
type Server struct {
	listen string
	flows  conntrack.FlowLister
	status StatusFunc
	logger *logging.Logger

	httpServer *http.Server
}

// ServerOptions configure a Server.
type ServerOptions struct {
	Listen string
	Flows  conntrack.FlowLister
	Status StatusFunc
	Logger *logging.Logger
}

// NewServer creates the API server.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		listen: opts.Listen,
		flows:  opts.Flows,
		status: opts.Status,
		logger: logging.WithComponent(opts.Logger, "api"),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/flows", s.handleFlows)
	mux.HandleFunc("GET /api/brand", s.handleBrand)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("api server listening", "addr", s.listen)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBrand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": brand.Name})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var doc any = map[string]string{"status": "running"}
	if s.status != nil {
		doc = s.status()
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	if s.flows == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "flow listing unavailable"})
		return
	}
	flows, err := s.flows.Flows()
	if err != nil {
		s.logger.Error("flow listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": flows, "count": len(flows)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
