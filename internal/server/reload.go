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

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
)

// Reload applies a new configuration without restarting. Logging, the
// sharing K-of-N and the TLS key pair are applied live; listener, scheme
// and cipher changes need a restart.
func (s *Server) Reload(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("reloading server configuration")

	if err := s.reloadLogging(cfg); err != nil {
		return fmt.Errorf("failed to reload logging configuration: %w", err)
	}

	if cfg.Sharing.TotalShares != s.config.Sharing.TotalShares {
		if _, err := s.session.SetTotalShares(ctx, cfg.Sharing.TotalShares); err != nil {
			return err
		}
	}
	if cfg.Sharing.Threshold != s.config.Sharing.Threshold {
		if _, err := s.session.SetThreshold(ctx, cfg.Sharing.Threshold); err != nil {
			return err
		}
	}

	if s.certs != nil {
		if err := s.certs.Reload(); err != nil {
			s.logger.Warn("keeping previous TLS certificate", "error", err)
		} else {
			s.logger.Info("TLS certificate reloaded")
		}
	}

	if cfg.Address() != s.config.Address() || cfg.Sharing.Scheme != s.config.Sharing.Scheme ||
		cfg.Cipher.Algorithm != s.config.Cipher.Algorithm {
		s.logger.Warn("listener, scheme and cipher changes take effect after restart")
	}

	s.config = cfg
	s.logger.Info("server configuration reloaded")
	return nil
}

func (s *Server) reloadLogging(cfg *config.Config) error {
	if cfg.Logging.Level == s.config.Logging.Level && cfg.Logging.Format == s.config.Logging.Format {
		return nil
	}

	logger, err := logging.New(cfg.LoggerOptions())
	if err != nil {
		return err
	}
	logger.Info("logging configuration updated",
		"old_level", s.config.Logging.Level,
		"new_level", cfg.Logging.Level,
		"format", cfg.Logging.Format)
	s.logger = logger
	return nil
}
