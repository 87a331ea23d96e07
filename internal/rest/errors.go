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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-keysplit/pkg/session"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error: err.Error(),
		Kind:  kindOf(err),
		Code:  statusCode,
	}, statusCode)
}

const (
	// KindInvalidRequest labels request decoding failures.
	KindInvalidRequest = "invalid_request"
	// KindRateLimited labels throttled requests.
	KindRateLimited = "rate_limited"
)

func kindOf(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return KindInvalidRequest
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}
	return session.KindOf(err)
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// mapErrorToStatusCode maps session errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	switch session.KindOf(err) {
	case session.KindConfiguration,
		session.KindMalformedShare,
		session.KindInsufficientShares,
		session.KindInvalidPayload,
		session.KindInvalidFile:
		return http.StatusBadRequest
	case session.KindNoPayload:
		return http.StatusNotFound
	case session.KindBusy, session.KindInvalidState:
		return http.StatusConflict
	case session.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case session.KindAuthenticationFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func rejectRateLimited(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
	writeError(w, ErrRateLimited, http.StatusTooManyRequests)
}

// handleError maps the error to a status code and writes the response.
func handleError(w http.ResponseWriter, err error) {
	writeError(w, err, mapErrorToStatusCode(err))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
