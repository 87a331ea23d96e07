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

// Package correlation ties an HTTP request to the log lines and audit
// records it produces. IDs supplied by clients are accepted only when they
// are short tokens safe to print; anything else is replaced by a UUID.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// Header is the preferred request header and the response header.
	Header = "X-Correlation-ID"

	// RequestIDHeader is accepted as a fallback and echoed as well.
	RequestIDHeader = "X-Request-ID"

	// MaxIDLength bounds client supplied IDs.
	MaxIDLength = 128
)

type ctxKey struct{}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the ID stored in ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewID returns a random UUID.
func NewID() string {
	return uuid.NewString()
}

// Valid reports whether id is a non-empty token of at most MaxIDLength
// letters, digits and the characters . _ : -
func Valid(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}

// FromRequest returns the first valid ID among the correlation and
// request ID headers, or a new one.
func FromRequest(r *http.Request) string {
	for _, h := range []string{Header, RequestIDHeader} {
		if id := r.Header.Get(h); Valid(id) {
			return id
		}
	}
	return NewID()
}

// Middleware stores an ID in every request context and echoes it in both
// response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromRequest(r)
		w.Header().Set(Header, id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
