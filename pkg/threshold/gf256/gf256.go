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

// Package gf256 implements byte-wise Shamir's Secret Sharing in GF(2^8).
//
// Every byte of the secret gets its own random polynomial, so shares are as
// long as the secret and there is no upper bound on secret size. Each share
// carries a SHA-256 checksum over its index and value, which lets Combine
// reject corrupted shares before interpolating.
//
// Share text is "<index hex>-<value hex>-<checksum hex>".
package gf256

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

// Name is the registered scheme name.
const Name = "gf256"

func init() {
	threshold.Register(Name, func(rng rand.Resolver) threshold.Scheme {
		return New(rng)
	})
}

// Scheme is the GF(256) threshold engine.
type Scheme struct {
	rng rand.Resolver
}

var _ threshold.Scheme = (*Scheme)(nil)

// New creates the engine. A nil rng selects the software source.
func New(rng rand.Resolver) *Scheme {
	if rng == nil {
		rng = &rand.SoftwareResolver{}
	}
	return &Scheme{rng: rng}
}

// Name implements threshold.Scheme.
func (s *Scheme) Name() string {
	return Name
}

type share struct {
	index    byte
	value    []byte
	checksum []byte
}

// Split divides a secret into total shares, requiring k to reconstruct.
func (s *Scheme) Split(secret []byte, total, k int) ([]threshold.Share, error) {
	if err := threshold.ValidateParameters(total, k); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, threshold.ErrEmptySecret
	}

	values := make([][]byte, total)
	for i := range values {
		values[i] = make([]byte, len(secret))
	}

	// p(x) = a0 + a1*x + ... + a(k-1)*x^(k-1), a0 = secret byte
	coeffs := make([]byte, k)
	defer clear(coeffs)

	for byteIdx, b := range secret {
		coeffs[0] = b
		if _, err := io.ReadFull(s.rng, coeffs[1:]); err != nil {
			return nil, fmt.Errorf("failed to generate random coefficients: %w", err)
		}
		for i := 0; i < total; i++ {
			values[i][byteIdx] = evaluatePolynomial(coeffs, byte(i+1))
		}
	}

	shares := make([]threshold.Share, total)
	for i, value := range values {
		sh := share{index: byte(i + 1), value: value}
		sh.checksum = checksum(sh.index, sh.value)
		shares[i] = threshold.Share{ID: i + 1, Data: format(sh)}
	}
	return shares, nil
}

// Combine reconstructs the secret. Every share must pass its checksum and
// all values must have the same length.
func (s *Scheme) Combine(shares []threshold.Share, size int) ([]byte, error) {
	if len(shares) == 0 {
		return nil, threshold.ErrNoShares
	}

	parsed := make([]share, 0, len(shares))
	seen := make(map[byte]bool, len(shares))
	for i, ts := range shares {
		sh, err := parse(ts.Data)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		if ts.ID != 0 && ts.ID != int(sh.index) {
			return nil, fmt.Errorf("share %d: %w: id %d does not match index %d",
				i+1, threshold.ErrMalformedShare, ts.ID, sh.index)
		}
		if seen[sh.index] {
			return nil, fmt.Errorf("share %d: %w: index %d repeated",
				i+1, threshold.ErrDuplicateShare, sh.index)
		}
		if len(parsed) > 0 && len(sh.value) != len(parsed[0].value) {
			return nil, fmt.Errorf("share %d: %w: value length %d, expected %d",
				i+1, threshold.ErrMalformedShare, len(sh.value), len(parsed[0].value))
		}
		seen[sh.index] = true
		parsed = append(parsed, sh)
	}

	secretLen := len(parsed[0].value)
	if size > 0 && secretLen != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d",
			threshold.ErrSecretSize, secretLen, size)
	}

	secret := make([]byte, secretLen)
	for byteIdx := range secret {
		secret[byteIdx] = lagrangeInterpolate(parsed, byteIdx)
	}
	return secret, nil
}

// Parse implements threshold.Scheme.
func (s *Scheme) Parse(text string) (threshold.Share, error) {
	sh, err := parse(text)
	if err != nil {
		return threshold.Share{}, err
	}
	return threshold.Share{ID: int(sh.index), Data: format(sh)}, nil
}

func format(sh share) string {
	return fmt.Sprintf("%02x-%s-%s", sh.index,
		hex.EncodeToString(sh.value), hex.EncodeToString(sh.checksum))
}

func parse(text string) (share, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), "-")
	if len(parts) != 3 {
		return share{}, fmt.Errorf("%w: expected <index>-<value>-<checksum>", threshold.ErrMalformedShare)
	}

	index, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil || index == 0 {
		return share{}, fmt.Errorf("%w: invalid index %q", threshold.ErrMalformedShare, parts[0])
	}
	value, err := hex.DecodeString(parts[1])
	if err != nil || len(value) == 0 {
		return share{}, fmt.Errorf("%w: invalid value", threshold.ErrMalformedShare)
	}
	sum, err := hex.DecodeString(parts[2])
	if err != nil {
		return share{}, fmt.Errorf("%w: invalid checksum", threshold.ErrMalformedShare)
	}

	sh := share{index: byte(index), value: value, checksum: sum}
	if subtle.ConstantTimeCompare(sum, checksum(sh.index, sh.value)) != 1 {
		return share{}, fmt.Errorf("%w: checksum mismatch", threshold.ErrMalformedShare)
	}
	return sh, nil
}

// checksum computes SHA-256 over the share index and value.
func checksum(index byte, value []byte) []byte {
	h := sha256.New()
	h.Write([]byte{index})
	h.Write(value)
	return h.Sum(nil)
}

// evaluatePolynomial evaluates a polynomial at point x using Horner's method.
func evaluatePolynomial(coeffs []byte, x byte) byte {
	if len(coeffs) == 0 {
		return 0
	}
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = gfAdd(gfMul(result, x), coeffs[i])
	}
	return result
}

// lagrangeInterpolate evaluates the interpolating polynomial at x=0 for one
// byte position. Indices are distinct, so no denominator is zero.
func lagrangeInterpolate(shares []share, byteIdx int) byte {
	var result byte
	for i := range shares {
		xi := shares[i].index
		var numerator, denominator byte = 1, 1
		for j := range shares {
			if i == j {
				continue
			}
			xj := shares[j].index
			// 0 - xj == xj in characteristic 2
			numerator = gfMul(numerator, xj)
			denominator = gfMul(denominator, gfSub(xi, xj))
		}
		basis := gfMul(numerator, gfInverse(denominator))
		result = gfAdd(result, gfMul(shares[i].value[byteIdx], basis))
	}
	return result
}

// GF(256) arithmetic in the AES field, x^8 + x^4 + x^3 + x + 1.

func gfAdd(a, b byte) byte {
	return a ^ b
}

func gfSub(a, b byte) byte {
	return a ^ b
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExpTable[(int(gfLogTable[a])+int(gfLogTable[b]))%255]
}

func gfInverse(a byte) byte {
	if a == 0 {
		panic("gf256: division by zero")
	}
	return gfExpTable[255-int(gfLogTable[a])]
}

var (
	gfLogTable [256]byte
	gfExpTable [256]byte
)

func init() {
	// Generator 0x03
	var x byte = 1
	for i := 0; i < 255; i++ {
		gfExpTable[i] = x
		gfLogTable[x] = byte(i)
		x = gfMultiply(x, 0x03)
	}
	gfExpTable[255] = gfExpTable[0]
}

// gfMultiply is the peasant algorithm, used only to build the tables.
func gfMultiply(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		highBit := a & 0x80
		a <<= 1
		if highBit != 0 {
			a ^= 0x1B
		}
		b >>= 1
	}
	return p
}
