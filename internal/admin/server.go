// Package admin provides the driver's small operational HTTP surface:
// liveness, Prometheus scraping, and run progress. It is a purpose-built
// replacement for the teacher pack's domain-specific admin server (replay,
// reconciliation, dashboard) — those operations have no equivalent in a
// single compute pipeline — but keeps its health-check-plus-metrics-plus-
// graceful-shutdown shape.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arminwolf/ctm-estimator/internal/driver"
)

// ProgressProvider is satisfied by *driver.Driver.
type ProgressProvider interface {
	Progress() driver.Progress
}

// Server exposes /healthz, /metrics, /progress, and optionally /runs.
type Server struct {
	addr     string
	progress ProgressProvider
	runs     RunLister
	nStates  int
	logger   *slog.Logger
}

func NewServer(addr string, progress ProgressProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, progress: progress, logger: logger.With("component", "admin")}
}

// SetRunLister wires the optional run-history store (spec A9). nStates
// scopes /runs to the driver's configured machine size, the same way a
// single driver run only ever produces history for that n.
func (s *Server) SetRunLister(runs RunLister, nStates int) {
	s.runs = runs
	s.nStates = nStates
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully (teacher pack's runHealthServer shape).
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/progress", s.handleProgress)
	mux.HandleFunc("/runs", s.handleRuns)

	rl := NewRateLimitMiddleware(s.logger)
	defer rl.Stop()

	server := &http.Server{
		Addr:    s.addr,
		Handler: AuditMiddleware(s.logger, rl.Wrap(mux)),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("admin server shutdown error", "error", err)
		}
	}()

	s.logger.Info("admin server started", "addr", s.addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Warn("failed to write health response", "error", err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		http.Error(w, "progress not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.progress.Progress()); err != nil {
		s.logger.Warn("failed to encode progress response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
