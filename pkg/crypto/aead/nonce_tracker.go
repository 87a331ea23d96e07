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

import (
	"fmt"
	"sync"
)

// DefaultInvocationLimit caps encryptions under one key with random 96-bit
// nonces (NIST SP 800-38D, section 8.3).
const DefaultInvocationLimit = 1 << 32

// NonceTracker guards one key: it refuses a nonce it has seen before and
// refuses any encryption past the invocation limit. Attach a fresh tracker
// to every key and call Reset when the key is destroyed.
//
//	tracker := aead.NewNonceTracker(0)
//	if err := tracker.Record(nonce); err != nil {
//		return err
//	}
type NonceTracker struct {
	mu    sync.Mutex
	seen  map[[NonceSize]byte]struct{}
	limit uint64
}

// NewNonceTracker creates a tracker allowing limit encryptions. Zero
// selects DefaultInvocationLimit.
func NewNonceTracker(limit uint64) *NonceTracker {
	if limit == 0 {
		limit = DefaultInvocationLimit
	}
	return &NonceTracker{
		seen:  make(map[[NonceSize]byte]struct{}),
		limit: limit,
	}
}

// Record admits nonce for one encryption. It returns ErrNonceReuse for a
// repeat and ErrKeyExhausted once the limit is reached.
func (nt *NonceTracker) Record(nonce []byte) error {
	if len(nonce) != NonceSize {
		return fmt.Errorf("aead: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	key := [NonceSize]byte(nonce)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	if _, dup := nt.seen[key]; dup {
		return ErrNonceReuse
	}
	if uint64(len(nt.seen)) >= nt.limit {
		return ErrKeyExhausted
	}
	nt.seen[key] = struct{}{}
	return nil
}

// Seen reports whether nonce was recorded.
func (nt *NonceTracker) Seen(nonce []byte) bool {
	if len(nonce) != NonceSize {
		return false
	}
	nt.mu.Lock()
	defer nt.mu.Unlock()
	_, ok := nt.seen[[NonceSize]byte(nonce)]
	return ok
}

// Used returns the number of encryptions admitted.
func (nt *NonceTracker) Used() uint64 {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return uint64(len(nt.seen))
}

// Reset forgets every nonce. Only call it together with discarding the key.
func (nt *NonceTracker) Reset() {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	clear(nt.seen)
}
