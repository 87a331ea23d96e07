// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keysplit.
//
// go-keysplit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-keysplit/pkg/correlation"
	"github.com/jeremyhahn/go-keysplit/pkg/health"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
	"github.com/jeremyhahn/go-keysplit/pkg/metrics"
	"github.com/jeremyhahn/go-keysplit/pkg/ratelimit"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the REST API server.
type Server struct {
	server    *http.Server
	handlers  *HandlerContext
	addr      string
	tlsConfig *tls.Config
	limiter   *ratelimit.Limiter
	checker   *health.Checker
	logger    *logging.Logger
	version   string

	metricsPath string
	healthPath  string
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8480)
	Addr string

	// Session serves every API request. Required.
	Session *session.Session

	// Version is reported by the health endpoints
	Version string

	// TLSConfig enables HTTPS when set
	TLSConfig *tls.Config

	// Limiter rate limits /api/v1 per client IP (optional)
	Limiter *ratelimit.Limiter

	// Checker backs /health/ready (optional)
	Checker *health.Checker

	Logger *logging.Logger

	// MetricsPath serves Prometheus metrics; empty disables it
	MetricsPath string

	// HealthPath prefixes the health endpoints (default: /health)
	HealthPath string

	// MaxBodyBytes bounds request bodies (default: 128 MiB)
	MaxBodyBytes int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8480"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 128 << 20
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	s := &Server{
		handlers:    NewHandlerContext(cfg.Session, cfg.MaxBodyBytes),
		addr:        cfg.Addr,
		tlsConfig:   cfg.TLSConfig,
		limiter:     cfg.Limiter,
		checker:     cfg.Checker,
		logger:      log,
		version:     cfg.Version,
		metricsPath: cfg.MetricsPath,
		healthPath:  cfg.HealthPath,
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.Middleware)
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	r.Get(s.healthPath, s.LivenessHandler)
	r.Head(s.healthPath, s.LivenessHandler)
	r.Get(s.healthPath+"/ready", s.ReadinessHandler)

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil && s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter, rejectRateLimited))
		}
		r.Use(SecureHeadersMiddleware)

		r.Post("/seal", s.handlers.SealHandler)
		r.Get("/payload", s.handlers.PayloadHandler)
		r.Post("/recover", s.handlers.RecoverHandler)

		r.Get("/config", s.handlers.GetConfigHandler)
		r.Put("/config", s.handlers.UpdateConfigHandler)

		r.Get("/audit", s.handlers.AuditHandler)
	})

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	if s.tlsConfig != nil {
		s.logger.Info("starting HTTPS server", "addr", ln.Addr().String())
		err = s.server.ServeTLS(ln, "", "")
	} else {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		err = s.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.logger.Info("server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
