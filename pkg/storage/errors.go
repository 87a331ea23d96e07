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

package storage

import "errors"

var (
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key holds no value.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrInvalidData is returned when a stored value cannot be decoded.
	ErrInvalidData = errors.New("storage: invalid data")
)

// ValidateKey rejects keys a backend must not store.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
