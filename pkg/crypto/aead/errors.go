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

package aead

import "errors"

var (
	// ErrNonceReuse is returned when a nonce is reused with the same key.
	// Reusing a GCM or ChaCha20-Poly1305 nonce breaks both confidentiality
	// and authentication, so the encryption is refused outright.
	ErrNonceReuse = errors.New("aead: nonce reuse detected, encryption refused")

	// ErrKeyExhausted is returned once a key reached its invocation limit.
	ErrKeyExhausted = errors.New("aead: key invocation limit reached")

	// ErrUnknownAlgorithm is returned for algorithm names outside the
	// supported set.
	ErrUnknownAlgorithm = errors.New("aead: unknown algorithm")
)
