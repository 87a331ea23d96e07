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
	"os"
	"testing"

	"github.com/jeremyhahn/go-keysplit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTLSConfig_Disabled(t *testing.T) {
	cfg := &TLSConfig{Enabled: false}
	tlsConfig, certs, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)
	assert.Nil(t, certs)
}

func TestLoadTLSConfig_ValidConfig(t *testing.T) {
	certFile, keyFile, _ := testutil.WriteServerFiles(t, t.TempDir())

	cfg := &TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}
	tlsConfig, certs, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsConfig)

	served, err := tlsConfig.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	assert.Same(t, certs.Current(), served)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	assert.Equal(t, tls.NoClientCert, tlsConfig.ClientAuth)
}

func TestLoadTLSConfig_MutualTLS(t *testing.T) {
	certFile, keyFile, caFile := testutil.WriteServerFiles(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		CAFile:     caFile,
		ClientAuth: "require_and_verify",
		MinVersion: "TLS1.3",
	}
	tlsConfig, _, err := cfg.LoadTLSConfig()
	require.NoError(t, err)

	assert.Equal(t, tls.RequireAndVerifyClientCert, tlsConfig.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
	assert.NotNil(t, tlsConfig.ClientCAs)
}

func TestLoadTLSConfig_Errors(t *testing.T) {
	certFile, keyFile, _ := testutil.WriteServerFiles(t, t.TempDir())

	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing cert", TLSConfig{Enabled: true, KeyFile: keyFile}},
		{"missing key", TLSConfig{Enabled: true, CertFile: certFile}},
		{"unreadable cert", TLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: keyFile}},
		{"old version", TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "TLS1.0"}},
		{"client auth", TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientAuth: "sometimes"}},
		{"verify without ca", TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientAuth: "verify"}},
		{"bad ca", TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientAuth: "verify", CAFile: keyFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.cfg.LoadTLSConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := (&TLSConfig{Enabled: true, MinVersion: "SSL3"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file")
	assert.Contains(t, err.Error(), "key_file")
	assert.Contains(t, err.Error(), "SSL3")
}

func TestCertificates_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile, _ := testutil.WriteServerFiles(t, dir)

	certs, err := LoadCertificates(certFile, keyFile)
	require.NoError(t, err)
	first := certs.Current()

	// Rotate in place and reload.
	testutil.WriteServerFiles(t, dir)
	require.NoError(t, certs.Reload())
	assert.NotEqual(t, first.Certificate[0], certs.Current().Certificate[0])

	// A broken rotation keeps the last good pair.
	rotated := certs.Current()
	require.NoError(t, os.WriteFile(certFile, []byte("garbage"), 0600))
	assert.Error(t, certs.Reload())
	assert.Same(t, rotated, certs.Current())
}
