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

// Package rand provides the random source capability consumed by the
// cipher adapter and the threshold engine.
//
// Production code resolves ModeSoftware (crypto/rand). Tests inject a
// deterministic io.Reader through NewReaderResolver so that share
// coefficients and IVs are reproducible:
//
//	rng, _ := rand.NewResolver(rand.ModeSoftware)
//	key, _ := rng.Rand(32)
//
//	// In test code only
//	rng := rand.NewReaderResolver(bytes.NewReader(seed))
//
// # Thread Safety
//
// SoftwareResolver is safe for concurrent use. A ReaderResolver is only as
// safe as the reader it wraps; it serializes reads with a mutex.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects the best available source. Only the software
	// source exists today, so auto resolves to it.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand (stdlib secure random)
	ModeSoftware Mode = "software"
)

// ErrUnavailable is returned by a resolver that can no longer produce bytes.
var ErrUnavailable = errors.New("rand: source unavailable")

// Resolver provides the main interface for generating random numbers.
// Applications should create a Resolver at startup and reuse it.
//
// Resolver implements io.Reader so it can be handed to field.Random and
// anything else expecting crypto/rand.Reader.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Available returns true if the source is ready.
	Available() bool

	// Close releases any resources.
	Close() error
}

// NewResolver creates a resolver for the given mode. An empty mode is
// treated as ModeAuto.
func NewResolver(mode Mode) (Resolver, error) {
	switch mode {
	case "", ModeAuto, ModeSoftware:
		return &SoftwareResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", mode)
	}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid byte count: %d", n)
	}
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Available() bool {
	return true // crypto/rand always available
}

func (s *SoftwareResolver) Close() error {
	return nil
}

// ReaderResolver adapts an arbitrary io.Reader into a Resolver. It exists
// for deterministic testing and for callers bringing their own entropy
// source; it performs no quality checks on the reader.
type ReaderResolver struct {
	mu     sync.Mutex
	reader io.Reader
	closed bool
}

var _ Resolver = (*ReaderResolver)(nil)

// NewReaderResolver wraps r.
func NewReaderResolver(r io.Reader) *ReaderResolver {
	return &ReaderResolver{reader: r}
}

// Rand returns n bytes read contiguously from the underlying reader. The
// lock is held across short reads, so concurrent callers never receive
// interleaved chunks.
func (r *ReaderResolver) Rand(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid byte count: %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.reader == nil {
		return nil, ErrUnavailable
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *ReaderResolver) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.reader == nil {
		return 0, ErrUnavailable
	}
	return r.reader.Read(p)
}

func (r *ReaderResolver) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.reader != nil
}

func (r *ReaderResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
