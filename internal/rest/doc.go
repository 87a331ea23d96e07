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

// Package rest exposes a keysplit session over HTTP.
//
// # Server Setup
//
//	sess, _ := session.New(&session.Config{Logger: logger})
//
//	server, _ := rest.NewServer(&rest.Config{
//	    Addr:    "127.0.0.1:8480",
//	    Session: sess,
//	    Logger:  logger,
//	})
//
//	go server.Start()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Owner flow:
//   - POST /api/v1/seal - Encrypt a file and issue shares
//   - GET  /api/v1/payload - Return the stored payload record
//
// Recovery flow:
//   - POST /api/v1/recover - Rebuild the key from shares and decrypt
//
// Configuration and audit:
//   - GET  /api/v1/config - Current K-of-N
//   - PUT  /api/v1/config - Change N and/or K
//   - GET  /api/v1/audit - Audit records, optionally ?flow=owner|recovery|config
//
// Operations:
//   - GET /health - Liveness
//   - GET /health/ready - Readiness with per-check results and session states
//   - GET /metrics - Prometheus metrics
//
// # Errors
//
// Failures are returned as {"error": "...", "kind": "...", "code": N}.
// The kind is the session error taxonomy label, and the status code is
// derived from it:
//
//	configuration, malformed_share,
//	insufficient_shares, invalid_payload,
//	invalid_file                           400
//	no_payload                             404
//	busy, invalid_state                    409
//	file_too_large                         413
//	authentication_failure                 422
//	rate limited                           429
//	everything else                        500
//
// Every response carries an X-Correlation-ID header; the same ID is
// recorded on the audit records the request produced.
package rest
