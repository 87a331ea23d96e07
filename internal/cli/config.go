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

package cli

import (
	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/internal/server"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables debug logging on stderr
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// Load reads the application configuration from ConfigFile, or defaults
// plus environment overrides when no file is set.
func (c *Config) Load() (*config.Config, error) {
	return config.Load(c.ConfigFile)
}

// Logger returns a debug logger in verbose mode and a discarding one
// otherwise.
func (c *Config) Logger() *logging.Logger {
	if c.Verbose {
		return logging.NewLogger(true)
	}
	return logging.Discard()
}

// NewSession builds an in-memory session from app.
func (c *Config) NewSession(app *config.Config) (*session.Session, error) {
	components, err := server.NewSession(app, nil, c.Logger())
	if err != nil {
		return nil, err
	}
	return components.Session, nil
}
