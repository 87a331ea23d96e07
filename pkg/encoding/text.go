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

// Package encoding converts byte buffers to and from the text forms used
// for shares, keys, IVs and ciphertext: lowercase hexadecimal and standard
// padded base64.
package encoding

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeHex returns the lowercase hexadecimal form of data.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex parses a hexadecimal string. Upper and lower case digits are
// accepted; surrounding whitespace is ignored.
func DecodeHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return data, nil
}

// EncodeBase64 returns the standard padded base64 form of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 parses a standard padded base64 string; surrounding
// whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return data, nil
}
