// Package api exposes the read-only HTTP status surface: a JSON status
// snapshot of the current window, book, position, and resting buy, plus the
// Prometheus scrape endpoint. Ambient observability only — this package
// never issues a trading decision, and the driver never blocks on it.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sniper/internal/config"
)

// Server runs the status/metrics HTTP surface.
type Server struct {
	cfg      config.DashboardConfig
	statusFn func() any
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a status/metrics server. statusFn is typically
// driver.Snapshot, wrapped to erase its concrete return type; reg is the
// Prometheus registry the driver's internal/obs.Metrics was constructed
// against.
func NewServer(cfg config.DashboardConfig, statusFn func() any, reg *prometheus.Registry, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{cfg: cfg, statusFn: statusFn, logger: logger.With("component", "api-server")}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if len(cfg.AllowedOrigins) > 0 {
		mux2 := http.NewServeMux()
		mux2.Handle("/", s.withCORS(mux, cfg.AllowedOrigins))
		mux = mux2
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Stop is called or the listener errors.
func (s *Server) Start() error {
	s.logger.Info("status server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping status server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.statusFn()); err != nil {
		s.logger.Error("encode status response", "error", err)
	}
}

func (s *Server) withCORS(next http.Handler, allowed []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if a == "*" || a == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}
