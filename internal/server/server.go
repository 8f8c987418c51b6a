package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nzgrid/mercury-usage-exporter/internal/config"
	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/logger"
	"github.com/nzgrid/mercury-usage-exporter/internal/version"
)

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// StatusSource is the coordinator surface the status endpoints read
type StatusSource interface {
	Snapshot() (coordinator.Snapshot, bool)
	IsReady() bool
	LastError() error
	LastPoll() time.Time
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	source StatusSource
	cfg    *config.Config
	logger *logger.Logger
}

// NewServer creates a new HTTP server exposing status and metrics endpoints
func NewServer(cfg *config.Config, source StatusSource, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:      mux,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		source: source,
		cfg:    cfg,
		logger: log.WithComponent("server"),
	}

	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// statusResponse is the JSON body served at /
type statusResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	LastPoll        string `json:"last_poll,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	MeasurementDate string `json:"measurement_date,omitempty"`
	WindowStart     string `json:"window_start,omitempty"`
	WindowEnd       string `json:"window_end,omitempty"`
	PollMinutes     int    `json:"poll_minutes"`
}

// handleStatus serves a JSON summary of the exporter state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:      "not ready",
		Version:     version.Version,
		PollMinutes: s.cfg.PollMinutes,
	}
	if s.source.IsReady() {
		resp.Status = "ready"
	}
	if lastPoll := s.source.LastPoll(); !lastPoll.IsZero() {
		resp.LastPoll = lastPoll.Format(time.RFC3339)
	}
	if err := s.source.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	if snap, ok := s.source.Snapshot(); ok {
		resp.MeasurementDate = snap.MeasurementDate
		resp.WindowStart = snap.WindowStart
		resp.WindowEnd = snap.WindowEnd
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to write status response", "error", err)
	}
}

// handleHealth handles health check requests (always returns 200 for liveness)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// handleReady handles readiness check requests (returns 200 only after one
// successful poll)
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.source.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(`{"status":"not ready","message":"waiting for initial poll"}`)); err != nil {
			s.logger.Error("Failed to write ready response", "error", err)
		}
		return
	}

	if err := s.source.LastError(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		body := map[string]string{"status": "not ready", "error": err.Error()}
		if writeErr := json.NewEncoder(w).Encode(body); writeErr != nil {
			s.logger.Error("Failed to write ready response", "error", writeErr)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ready"}`)); err != nil {
		s.logger.Error("Failed to write ready response", "error", err)
	}
}
