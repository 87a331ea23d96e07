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

// Package config loads keysplit settings from YAML files and KEYSPLIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
	"github.com/jeremyhahn/go-keysplit/pkg/ratelimit"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/spf13/viper"

	// Scheme names are validated against the registry.
	_ "github.com/jeremyhahn/go-keysplit/pkg/threshold/gf256"
	_ "github.com/jeremyhahn/go-keysplit/pkg/threshold/shamir"
	_ "github.com/jeremyhahn/go-keysplit/pkg/threshold/sssa"
)

// EnvPrefix prefixes every environment override, e.g.
// KEYSPLIT_SHARING_THRESHOLD or KEYSPLIT_SERVER_PORT.
const EnvPrefix = "KEYSPLIT"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete keysplit configuration.
type Config struct {
	Sharing   SharingConfig   `yaml:"sharing" mapstructure:"sharing"`
	Cipher    CipherConfig    `yaml:"cipher" mapstructure:"cipher"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	TLS       TLSConfig       `yaml:"tls" mapstructure:"tls"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Health    HealthConfig    `yaml:"health" mapstructure:"health"`
}

// SharingConfig selects the threshold scheme and the initial K-of-N.
type SharingConfig struct {
	Scheme      string `yaml:"scheme" mapstructure:"scheme"`
	TotalShares int    `yaml:"total_shares" mapstructure:"total_shares"`
	Threshold   int    `yaml:"threshold" mapstructure:"threshold"`
	MaxShares   int    `yaml:"max_shares" mapstructure:"max_shares"`
}

// CipherConfig selects the AEAD algorithm.
type CipherConfig struct {
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"` // auto, aes-256-gcm, chacha20-poly1305
}

// SessionConfig controls payload handling.
type SessionConfig struct {
	Compress    bool  `yaml:"compress" mapstructure:"compress"`
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RateLimitConfig controls per-client rate limiting of the HTTP API
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
	TrustProxy     bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// HealthConfig controls the health check endpoint
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	app := session.DefaultAppConfig()
	v.SetDefault("sharing.scheme", "prime521")
	v.SetDefault("sharing.total_shares", app.TotalShares)
	v.SetDefault("sharing.threshold", app.Threshold)
	v.SetDefault("sharing.max_shares", app.MaxShares)

	v.SetDefault("cipher.algorithm", aead.Auto)

	v.SetDefault("session.compress", false)
	v.SetDefault("session.max_file_size", session.DefaultMaxFileSize)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8480)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.ca_file", "")
	v.SetDefault("tls.client_auth", "none")
	v.SetDefault("tls.min_version", "TLS1.2")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logging.FormatText)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_min", 120)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.trust_proxy", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.path", "/health")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() (*Config, error) {
	return Load("")
}

// Load reads the YAML file at path, applies KEYSPLIT_* environment
// overrides and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := threshold.New(c.Sharing.Scheme, nil); err != nil {
		return fmt.Errorf("%w: sharing.scheme: %v", ErrInvalidConfig, err)
	}
	if err := c.AppConfig().Validate(); err != nil {
		return fmt.Errorf("%w: sharing: %v", ErrInvalidConfig, err)
	}

	switch c.Cipher.Algorithm {
	case aead.Auto, aead.AES256GCM, aead.ChaCha20Poly1305:
	default:
		return fmt.Errorf("%w: unknown cipher algorithm %q", ErrInvalidConfig, c.Cipher.Algorithm)
	}

	if c.Session.MaxFileSize <= 0 {
		return fmt.Errorf("%w: session.max_file_size must be positive", ErrInvalidConfig)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", ErrInvalidConfig, c.Server.Port)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be json or text)", ErrInvalidConfig, c.Logging.Format)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("%w: ratelimit requires positive requests_per_min and burst", ErrInvalidConfig)
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// AppConfig returns the sharing bounds as a session configuration.
func (c *Config) AppConfig() session.AppConfig {
	return session.AppConfig{
		TotalShares: c.Sharing.TotalShares,
		Threshold:   c.Sharing.Threshold,
		MaxShares:   c.Sharing.MaxShares,
	}
}

// LoggerOptions returns the logging options for pkg/logging.
func (c *Config) LoggerOptions() *logging.Options {
	return &logging.Options{
		Level:  c.Logging.Level,
		Format: strings.ToLower(c.Logging.Format),
	}
}

// RateLimiterConfig returns the limiter settings for pkg/ratelimit.
func (c *Config) RateLimiterConfig() *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:           c.RateLimit.Enabled,
		RequestsPerMinute: c.RateLimit.RequestsPerMin,
		Burst:             c.RateLimit.Burst,
		TrustProxy:        c.RateLimit.TrustProxy,
	}
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
