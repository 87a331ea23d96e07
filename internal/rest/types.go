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
	"time"

	"github.com/jeremyhahn/go-keysplit/pkg/audit"
	"github.com/jeremyhahn/go-keysplit/pkg/health"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SealRequest selects a file and seals it in one call. Data is base64 in
// JSON.
type SealRequest struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

// SealResponse carries the new payload and its shares. The shares are
// returned exactly once.
type SealResponse struct {
	Payload session.Payload   `json:"payload"`
	Shares  []threshold.Share `json:"shares"`
}

// RecoverRequest submits share texts. When Payload is set it replaces the
// stored payload before recovery.
type RecoverRequest struct {
	Shares  []string         `json:"shares"`
	Payload *session.Payload `json:"payload,omitempty"`
}

// RecoverResponse carries the decrypted file.
type RecoverResponse struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	Data       []byte `json:"data"`
	SharesUsed int    `json:"shares_used"`
}

// ConfigRequest changes N and/or K. N is applied first.
type ConfigRequest struct {
	TotalShares *int `json:"total_shares,omitempty"`
	Threshold   *int `json:"threshold,omitempty"`
}

// AuditResponse lists audit records oldest first.
type AuditResponse struct {
	Records []audit.Record `json:"records"`
}

// HealthCheckResponse represents the response for health check endpoints.
type HealthCheckResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Version string               `json:"version,omitempty"`
	Uptime  time.Duration        `json:"uptime_ns,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
	Session *SessionStatus       `json:"session,omitempty"`
}

// SessionStatus reports the session state machines on /health/ready.
type SessionStatus struct {
	OwnerState    string `json:"owner_state"`
	RecoveryState string `json:"recovery_state"`
	PayloadStored bool   `json:"payload_stored"`
}
