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
	"net/http"

	"github.com/jeremyhahn/go-keysplit/pkg/health"
)

var readinessMessages = map[health.Status]string{
	health.StatusHealthy:   "All checks passed",
	health.StatusDegraded:  "Service is degraded",
	health.StatusUnhealthy: "One or more checks failed",
}

// LivenessHandler handles GET /health. Reaching it means the process
// serves requests, so it always reports healthy.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.healthResponse(health.StatusHealthy, "Service is alive"), http.StatusOK)
}

// ReadinessHandler handles GET /health/ready. It runs the registered
// checks and reports where the owner and recovery flows stand. Only an
// unhealthy result answers 503; a degraded service keeps taking traffic.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	var results []health.CheckResult
	if s.checker != nil {
		results = s.checker.Ready(r.Context())
		status = health.AggregateStatus(results)
	}

	resp := s.healthResponse(status, readinessMessages[status])
	resp.Checks = results
	resp.Session = s.sessionStatus()

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, code)
}

func (s *Server) healthResponse(status health.Status, message string) HealthCheckResponse {
	resp := HealthCheckResponse{
		Status:  status,
		Message: message,
		Version: s.version,
	}
	if s.checker != nil {
		resp.Uptime = s.checker.Uptime()
	}
	return resp
}

func (s *Server) sessionStatus() *SessionStatus {
	sess := s.handlers.session
	_, stored := sess.Payload()
	return &SessionStatus{
		OwnerState:    string(sess.OwnerState()),
		RecoveryState: string(sess.RecoveryState()),
		PayloadStored: stored,
	}
}
