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

import (
	"encoding/json"
	"fmt"
)

// Session record keys.
const (
	// SessionPrefix is the namespace for session state.
	SessionPrefix = "session/"

	// PayloadKey holds the current encrypted payload.
	PayloadKey = SessionPrefix + "payload"

	// ConfigKey holds the current sharing configuration.
	ConfigKey = SessionPrefix + "config"
)

// PutJSON stores v encoded as JSON under key.
func PutJSON(backend Backend, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return backend.Put(key, data)
}

// GetJSON decodes the JSON value stored under key into v.
func GetJSON(backend Backend, key string, v any) error {
	data, err := backend.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidData, key, err)
	}
	return nil
}
