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

// Package threshold defines the (K,N) secret sharing contract shared by the
// scheme implementations in its subpackages:
//
//   - shamir: polynomial sharing over GF(2^521 - 1) (default)
//   - gf256:  byte-wise sharing over GF(2^8) with share checksums
//   - sssa:   interop with the SSSaaS share format
//
// Schemes register themselves by name from their init functions, the same
// way database/sql drivers do, so a scheme is available once its package is
// imported:
//
//	import _ "github.com/jeremyhahn/go-keysplit/pkg/threshold/shamir"
//
//	scheme, err := threshold.New("prime521", rng)
//	shares, err := scheme.Split(secret, 5, 3)
//	secret, err = scheme.Combine(shares[:3], 32)
//
// Combine never knows the threshold a secret was split under. Supplying
// fewer shares than that threshold yields a wrong secret rather than an
// error; callers must check the share count themselves.
package threshold

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
)

const (
	// MinThreshold is the smallest supported threshold.
	MinThreshold = 2

	// MaxShares is the largest number of shares any scheme can issue.
	MaxShares = 255
)

var (
	// ErrInvalidParameters is returned when threshold/total are out of range.
	ErrInvalidParameters = errors.New("threshold: invalid sharing parameters")

	// ErrEmptySecret is returned when splitting an empty secret.
	ErrEmptySecret = errors.New("threshold: secret cannot be empty")

	// ErrSecretTooLarge is returned when the secret does not fit the scheme.
	ErrSecretTooLarge = errors.New("threshold: secret too large for scheme")

	// ErrNoShares is returned when combining an empty share set.
	ErrNoShares = errors.New("threshold: no shares provided")

	// ErrMalformedShare is returned when share text cannot be parsed.
	ErrMalformedShare = errors.New("threshold: malformed share")

	// ErrDuplicateShare is returned when two shares carry the same index,
	// which would collapse an interpolation denominator to zero.
	ErrDuplicateShare = errors.New("threshold: malformed or duplicate share")

	// ErrSecretSize is returned when the reconstructed secret does not fit
	// the requested size. With valid shares this only happens when the share
	// set is wrong or incomplete.
	ErrSecretSize = errors.New("threshold: reconstructed secret has unexpected size")

	// ErrUnknownScheme is returned by New for unregistered names.
	ErrUnknownScheme = errors.New("threshold: unknown scheme")
)

// Scheme splits secrets into shares and combines them back.
type Scheme interface {
	// Name returns the registered scheme name.
	Name() string

	// Split divides secret into total shares, any threshold of which
	// reconstruct it.
	Split(secret []byte, total, threshold int) ([]Share, error)

	// Combine reconstructs a secret from shares. When size > 0 the result
	// is exactly size bytes long, left-padded with zeros.
	Combine(shares []Share, size int) ([]byte, error)

	// Parse converts share text, as produced in Share.Data, back into a Share.
	Parse(text string) (Share, error)
}

// Factory creates a scheme drawing randomness from rng.
type Factory func(rng rand.Resolver) Scheme

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a scheme available under name. It panics if name is
// registered twice or factory is nil.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("threshold: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("threshold: Register called twice for scheme " + name)
	}
	registry[name] = factory
}

// New returns the scheme registered under name. A nil rng selects the
// software random source.
func New(name string, rng rand.Resolver) (Scheme, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}

	if rng == nil {
		var err error
		rng, err = rand.NewResolver(rand.ModeSoftware)
		if err != nil {
			return nil, err
		}
	}
	return factory(rng), nil
}

// Schemes returns the sorted names of all registered schemes.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateParameters checks 2 <= threshold <= total <= MaxShares.
func ValidateParameters(total, threshold int) error {
	if threshold < MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d, got %d",
			ErrInvalidParameters, MinThreshold, threshold)
	}
	if total < threshold {
		return fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)",
			ErrInvalidParameters, total, threshold)
	}
	if total > MaxShares {
		return fmt.Errorf("%w: total shares cannot exceed %d, got %d",
			ErrInvalidParameters, MaxShares, total)
	}
	return nil
}
