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

package encoding

import "errors"

var (
	// ErrInvalidHex is returned when a string is not valid hexadecimal
	ErrInvalidHex = errors.New("encoding: invalid hex encoding")

	// ErrInvalidBase64 is returned when a string is not valid standard base64
	ErrInvalidBase64 = errors.New("encoding: invalid base64 encoding")
)
