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

package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// TLSConfig controls TLS on the HTTP listener
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`

	// CAFile verifies client certificates. Required by the verify modes.
	CAFile string `yaml:"ca_file" mapstructure:"ca_file"`

	// ClientAuth is one of none, request, require, verify,
	// require_and_verify.
	ClientAuth string `yaml:"client_auth" mapstructure:"client_auth"`

	// MinVersion is TLS1.2 or TLS1.3.
	MinVersion string `yaml:"min_version" mapstructure:"min_version"`
}

var tlsVersions = map[string]uint16{
	"":       tls.VersionTLS12,
	"tls1.2": tls.VersionTLS12,
	"tls1.3": tls.VersionTLS13,
}

var clientAuthModes = map[string]tls.ClientAuthType{
	"":                   tls.NoClientCert,
	"none":               tls.NoClientCert,
	"request":            tls.RequestClientCert,
	"require":            tls.RequireAnyClientCert,
	"verify":             tls.VerifyClientCertIfGiven,
	"require_and_verify": tls.RequireAndVerifyClientCert,
}

func (cfg *TLSConfig) minVersion() (uint16, error) {
	v, ok := tlsVersions[strings.ToLower(cfg.MinVersion)]
	if !ok {
		return 0, fmt.Errorf("tls.min_version %q is not TLS1.2 or TLS1.3", cfg.MinVersion)
	}
	return v, nil
}

func (cfg *TLSConfig) clientAuth() (tls.ClientAuthType, error) {
	mode, ok := clientAuthModes[strings.ToLower(cfg.ClientAuth)]
	if !ok {
		return tls.NoClientCert, fmt.Errorf("tls.client_auth %q is not supported", cfg.ClientAuth)
	}
	return mode, nil
}

// Validate checks the TLS settings without touching the filesystem.
func (cfg *TLSConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.CertFile == "" {
		errs = append(errs, errors.New("tls.cert_file is required"))
	}
	if cfg.KeyFile == "" {
		errs = append(errs, errors.New("tls.key_file is required"))
	}
	if _, err := cfg.minVersion(); err != nil {
		errs = append(errs, err)
	}
	mode, err := cfg.clientAuth()
	if err != nil {
		errs = append(errs, err)
	}
	if mode >= tls.VerifyClientCertIfGiven && cfg.CAFile == "" {
		errs = append(errs, fmt.Errorf("tls.ca_file is required for client_auth %q", cfg.ClientAuth))
	}
	return errors.Join(errs...)
}

// LoadTLSConfig builds the listener configuration. Both results are nil
// when TLS is disabled. The certificate is served through the returned
// Certificates so it can be rotated without a restart.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, *Certificates, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	certs, err := LoadCertificates(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, nil, err
	}
	minVersion, _ := cfg.minVersion()
	clientAuth, _ := cfg.clientAuth()

	// #nosec G402 - MinVersion is never below TLS 1.2
	tlsConfig := &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     minVersion,
		ClientAuth:     clientAuth,
	}
	if cfg.CAFile != "" && clientAuth != tls.NoClientCert {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, nil, err
		}
		tlsConfig.ClientCAs = pool
	}
	return tlsConfig, certs, nil
}

// Certificates holds the listener key pair and swaps it atomically on
// Reload. In-flight handshakes keep the pair they started with.
type Certificates struct {
	certFile string
	keyFile  string
	current  atomic.Pointer[tls.Certificate]
}

// LoadCertificates reads the key pair once.
func LoadCertificates(certFile, keyFile string) (*Certificates, error) {
	c := &Certificates{certFile: certFile, keyFile: keyFile}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the key pair. On failure the previous pair stays in use.
func (c *Certificates) Reload() error {
	pair, err := tls.LoadX509KeyPair(c.certFile, c.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load server certificate: %w", err)
	}
	c.current.Store(&pair)
	return nil
}

// Current returns the pair being served.
func (c *Certificates) Current() *tls.Certificate {
	return c.current.Load()
}

// GetCertificate implements tls.Config.GetCertificate.
func (c *Certificates) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return c.current.Load(), nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	// #nosec G304 - CA file path from trusted config
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA file %s", caFile)
	}
	return pool, nil
}
