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

// Package server wires configuration, session and HTTP API into the
// keysplit daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/internal/rest"
	"github.com/jeremyhahn/go-keysplit/pkg/audit"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/symmetric"
	"github.com/jeremyhahn/go-keysplit/pkg/health"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
	"github.com/jeremyhahn/go-keysplit/pkg/metrics"
	"github.com/jeremyhahn/go-keysplit/pkg/ratelimit"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/jeremyhahn/go-keysplit/pkg/storage"
	"github.com/jeremyhahn/go-keysplit/pkg/storage/memory"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

// Server is the keysplit daemon.
type Server struct {
	config *config.Config
	mu     sync.RWMutex
	logger *logging.Logger

	rng     rand.Resolver
	store   storage.Backend
	session *session.Session

	restServer    *rest.Server
	healthChecker *health.Checker
	limiter       *ratelimit.Limiter
	certs         *config.Certificates

	metricsCollector *metrics.ResourceCollector

	// Lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	serveErr   chan error
	shutdownCh chan struct{}
	once       sync.Once
}

// Components are the collaborators NewSession builds from configuration.
type Components struct {
	Random  rand.Resolver
	Store   storage.Backend
	Session *session.Session
}

// NewSession builds a session from cfg. A nil store selects the in-memory
// backend.
func NewSession(cfg *config.Config, store storage.Backend, logger *logging.Logger) (*Components, error) {
	rng, err := rand.NewResolver(rand.ModeAuto)
	if err != nil {
		return nil, fmt.Errorf("failed to open random source: %w", err)
	}

	cipher, err := symmetric.New(&symmetric.Config{Algorithm: cfg.Cipher.Algorithm, Random: rng})
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	scheme, err := threshold.New(cfg.Sharing.Scheme, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheme: %w", err)
	}

	if store == nil {
		store = memory.New()
	}

	sess, err := session.New(&session.Config{
		Cipher:      cipher,
		Scheme:      scheme,
		Random:      rng,
		Store:       store,
		Audit:       audit.NewLog(audit.DefaultCapacity),
		Logger:      logger,
		AppConfig:   cfg.AppConfig(),
		Compress:    cfg.Session.Compress,
		MaxFileSize: cfg.Session.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	return &Components{Random: rng, Store: store, Session: sess}, nil
}

// New creates the daemon from cfg.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(cfg.LoggerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	components, err := NewSession(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		logger:     logger,
		rng:        components.Random,
		store:      components.Store,
		session:    components.Session,
		ctx:        ctx,
		cancel:     cancel,
		serveErr:   make(chan error, 1),
		shutdownCh: make(chan struct{}),
	}

	s.initializeHealth()

	tlsConfig, certs, err := cfg.TLS.LoadTLSConfig()
	if err != nil {
		cancel()
		return nil, err
	}

	s.certs = certs
	s.limiter = ratelimit.New(cfg.RateLimiterConfig())

	restConfig := &rest.Config{
		Addr:         cfg.Address(),
		Session:      s.session,
		Version:      getBuildVersion(),
		TLSConfig:    tlsConfig,
		Limiter:      s.limiter,
		Checker:      s.healthChecker,
		Logger:       logger,
		HealthPath:   cfg.Health.Path,
		MaxBodyBytes: 2*cfg.Session.MaxFileSize + 1<<20,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Metrics.Enabled {
		restConfig.MetricsPath = cfg.Metrics.Path
	}
	if s.restServer, err = rest.NewServer(restConfig); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create REST server: %w", err)
	}
	return s, nil
}

// getBuildVersion retrieves the version from build information
func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func (s *Server) initializeHealth() {
	s.healthChecker = health.NewChecker()
	s.healthChecker.RegisterCheck("storage", health.StorageCheck(s.store))
	s.healthChecker.RegisterCheck("random", health.RandomCheck(s.rng))
}

// Start begins serving on the configured address.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ln)
}

// Serve begins serving on ln and returns immediately.
func (s *Server) Serve(ln net.Listener) error {
	if s.config.Metrics.Enabled {
		metrics.Enable()
		s.metricsCollector = metrics.StartResourceCollector(s.ctx, 30*time.Second, s.sessionSnapshot)
	} else {
		metrics.Disable()
	}

	s.currentLogger().Info("starting keysplit server",
		"addr", ln.Addr().String(),
		"scheme", s.config.Sharing.Scheme,
		"config", fmt.Sprintf("%d-of-%d", s.config.Sharing.Threshold, s.config.Sharing.TotalShares))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.restServer.Serve(ln); err != nil {
			s.currentLogger().Warn("REST server error", "error", err)
			s.serveErr <- err
		}
	}()
	return nil
}

// Session returns the session served by the daemon.
func (s *Server) Session() *session.Session {
	return s.session
}

// Shutdown gracefully stops serving and wipes the store.
func (s *Server) Shutdown() error {
	var err error
	s.once.Do(func() {
		s.currentLogger().Info("shutting down server")

		if s.metricsCollector != nil {
			s.metricsCollector.Stop()
		}
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if stopErr := s.restServer.Stop(ctx); stopErr != nil {
			err = stopErr
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.currentLogger().Warn("shutdown timeout exceeded, forcing stop")
		}

		if closeErr := s.store.Close(); closeErr != nil && !errors.Is(closeErr, storage.ErrClosed) {
			err = errors.Join(err, closeErr)
		}
		if closeErr := s.rng.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}

		close(s.shutdownCh)
		s.currentLogger().Info("server shutdown complete")
	})
	return err
}

// Run serves until ctx is cancelled or serving fails, reloading the
// configuration from load on every reload signal.
func (s *Server) Run(ctx context.Context, reload <-chan struct{}, load func() (*config.Config, error)) error {
	for {
		select {
		case <-ctx.Done():
			return s.Shutdown()
		case err := <-s.serveErr:
			return errors.Join(err, s.Shutdown())
		case <-reload:
			if load == nil {
				continue
			}
			cfg, err := load()
			if err != nil {
				s.currentLogger().Warn("failed to load configuration", "error", err)
				continue
			}
			if err := s.Reload(ctx, cfg); err != nil {
				s.currentLogger().Warn("failed to reload configuration", "error", err)
			}
		}
	}
}

func (s *Server) currentLogger() *logging.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// WaitForShutdown blocks until the server is shut down
func (s *Server) WaitForShutdown() {
	<-s.shutdownCh
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM and
// a channel that receives on SIGHUP.
func SetupSignalHandler() (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range signalCh {
			if sig == syscall.SIGHUP {
				select {
				case reload <- struct{}{}:
				default:
				}
				continue
			}
			cancel()
			signal.Stop(signalCh)
			return
		}
	}()
	return ctx, reload
}

// sessionSnapshot samples the session for the resource collector.
func (s *Server) sessionSnapshot() metrics.SessionSnapshot {
	_, stored := s.session.Payload()
	return metrics.SessionSnapshot{
		OwnerState:    string(s.session.OwnerState()),
		RecoveryState: string(s.session.RecoveryState()),
		AuditRecords:  len(s.session.AuditLog()),
		PayloadStored: stored,
	}
}
