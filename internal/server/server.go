// Package server is the local intake surface: phones on the field
// network submit form data and attachments over HTTP, and everything
// lands in the submission store before the device gets its 200.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fieldpost/fieldpost/internal/notify"
	"github.com/fieldpost/fieldpost/internal/store"
)

// Server is the HTTP intake server.
type Server struct {
	config   Config
	http     *http.Server
	store    *store.Store
	notifier *notify.Notifier
	metrics  *Metrics
	limiter  *ipRateLimiter
}

// NewServer creates a Server over an open store.
func NewServer(cfg Config, st *store.Store) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadsDir(), 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	s := &Server{
		config:   cfg,
		store:    st,
		notifier: notify.New(cfg.WebhookURL, cfg.WebhookSecret),
		metrics:  NewMetrics(),
		limiter:  newIPRateLimiter(cfg.RatePerMin, cfg.RateBurst),
	}

	s.http = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.routes(),
		// WriteTimeout leaves room for a full-size upload on slow wifi
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /form/{type}", s.handleFormPage)
	mux.HandleFunc("GET /admin", s.handleAdmin)

	// Intake and read API
	mux.HandleFunc("POST /api/submit", s.withRateLimit(s.handleSubmit))
	mux.HandleFunc("GET /api/submissions", s.handleSubmissions)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/qrcode", s.handleQRCode)
	mux.HandleFunc("GET /uploads/{name}", s.handleUploadedFile)

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	return chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		metricsMiddleware(s.metrics),
		loggingMiddleware,
		maxBytesMiddleware(s.config.MaxUploadBytes()),
	)
}

// handleHealth returns a health check response, pinging the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of intake metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
