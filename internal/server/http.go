package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skorokithakis/middle/internal/metrics"
	"github.com/skorokithakis/middle/internal/session"
)

// StatusProvider exposes the device loop's counters to the status endpoint.
type StatusProvider interface {
	Stats() session.Stats
}

// HTTPServer serves the monitoring API.
type HTTPServer struct {
	server  *http.Server
	status  StatusProvider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHTTPServer creates the monitoring server.
func NewHTTPServer(addr string, status StatusProvider, logger *slog.Logger, m *metrics.Metrics) *HTTPServer {
	s := &HTTPServer{
		status:  status,
		logger:  logger,
		metrics: m,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.instrument("/healthz", s.handleHealth))
	mux.HandleFunc("/status", s.instrument("/status", s.handleStatus))
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start runs the server until it is stopped. It blocks.
func (s *HTTPServer) Start() error {
	s.logger.Info("Starting HTTP server",
		slog.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(rec.code), time.Since(start).Seconds())
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Stats()); err != nil {
		s.logger.Error("Failed to encode status response",
			slog.String("error", err.Error()))
	}
}
