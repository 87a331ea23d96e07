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

// Package sssa adapts the sssa-golang library to the threshold.Scheme
// contract so shares can be exchanged with other SSSaaS implementations.
//
// Each share is the library's native text form: a concatenation of 88
// character blocks, each two 44 character URL-safe base64 numbers (x, y).
// The library draws random x coordinates, so share text does not reveal an
// index and Share.ID is left at zero.
//
// sssa-golang keeps its prime in a package variable; callers must not run
// Split or Combine concurrently.
package sssa

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/SSSaaS/sssa-golang"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

// Name is the registered scheme name.
const Name = "sssa"

const (
	numberLen = 44
	blockLen  = 2 * numberLen
	numberRaw = 32
)

func init() {
	threshold.Register(Name, func(rng rand.Resolver) threshold.Scheme {
		return New()
	})
}

// Scheme wraps sssa-golang. The library reads crypto/rand directly, so no
// random source is injected.
type Scheme struct{}

var _ threshold.Scheme = (*Scheme)(nil)

// New returns the sssa scheme.
func New() *Scheme {
	return &Scheme{}
}

// Name implements threshold.Scheme.
func (s *Scheme) Name() string {
	return Name
}

// Split encodes secret as hex and splits it with sssa.Create.
func (s *Scheme) Split(secret []byte, total, k int) ([]threshold.Share, error) {
	if err := threshold.ValidateParameters(total, k); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, threshold.ErrEmptySecret
	}

	texts, err := sssa.Create(k, total, hex.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}

	shares := make([]threshold.Share, len(texts))
	for i, text := range texts {
		shares[i] = threshold.Share{Data: text}
	}
	return shares, nil
}

// Combine validates every share locally and then calls sssa.Combine.
func (s *Scheme) Combine(shares []threshold.Share, size int) ([]byte, error) {
	if len(shares) == 0 {
		return nil, threshold.ErrNoShares
	}

	texts := make([]string, len(shares))
	seen := make(map[string]bool, len(shares))
	for i, share := range shares {
		text := strings.TrimSpace(share.Data)
		if err := validate(text); err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		if len(text) != len(strings.TrimSpace(shares[0].Data)) {
			return nil, fmt.Errorf("share %d: %w: length differs from share 1",
				i+1, threshold.ErrMalformedShare)
		}
		if seen[text] {
			return nil, fmt.Errorf("share %d: %w", i+1, threshold.ErrDuplicateShare)
		}
		seen[text] = true
		texts[i] = text
	}

	secretHex, err := sssa.Combine(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", threshold.ErrMalformedShare, err)
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		// Wrong or too few shares interpolate to garbage rather than hex.
		return nil, fmt.Errorf("%w: combined value is not a valid secret", threshold.ErrSecretSize)
	}
	if size > 0 && len(secret) != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d",
			threshold.ErrSecretSize, len(secret), size)
	}
	return secret, nil
}

// Parse implements threshold.Scheme.
func (s *Scheme) Parse(text string) (threshold.Share, error) {
	text = strings.TrimSpace(text)
	if err := validate(text); err != nil {
		return threshold.Share{}, err
	}
	return threshold.Share{Data: text}, nil
}

// validate checks the block structure without calling sssa.IsValidShare,
// which depends on library state initialized only by Create or Combine.
func validate(text string) error {
	if len(text) == 0 || len(text)%blockLen != 0 {
		return fmt.Errorf("%w: length must be a multiple of %d", threshold.ErrMalformedShare, blockLen)
	}
	for i := 0; i < len(text); i += numberLen {
		raw, err := base64.URLEncoding.DecodeString(text[i : i+numberLen])
		if err != nil || len(raw) != numberRaw {
			return fmt.Errorf("%w: invalid block at offset %d", threshold.ErrMalformedShare, i)
		}
	}
	return nil
}
