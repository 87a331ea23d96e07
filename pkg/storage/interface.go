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

// Package storage holds the session's volatile state: the current
// encrypted payload and the sharing configuration. Values are opaque bytes
// under "session/" keys; PutJSON and GetJSON encode the records.
package storage

// Backend is a key-value store safe for concurrent use.
type Backend interface {
	// Get returns a copy of the value under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put replaces the value under key.
	Put(key string, value []byte) error

	// Delete removes key, or returns ErrNotFound.
	Delete(key string) error

	// List returns the keys starting with prefix, sorted.
	List(prefix string) ([]string, error)

	// Close releases the backend. Later calls return ErrClosed.
	Close() error
}

// Pinger is implemented by backends that can report liveness without
// touching any record.
type Pinger interface {
	Ping() error
}

// Ping checks backend, preferring Pinger over a listing of the session
// namespace.
func Ping(backend Backend) error {
	if p, ok := backend.(Pinger); ok {
		return p.Ping()
	}
	_, err := backend.List(SessionPrefix)
	return err
}
