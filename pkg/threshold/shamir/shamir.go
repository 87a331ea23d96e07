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

// Package shamir implements Shamir's Secret Sharing over the prime field
// GF(2^521 - 1).
//
// The whole secret is encoded as one field element and used as the constant
// term of a random polynomial of degree threshold-1. Share x (1..N) is the
// pair (x, f(x)), rendered as "<x hex>-<y hex>" in lowercase without
// padding. Any threshold shares recover f(0) by Lagrange interpolation;
// fewer reveal nothing about it.
//
// Example:
//
//	scheme := shamir.New(rng)
//	shares, err := scheme.Split(key, 5, 3)
//	// Any 3 of the 5 shares reconstruct the key
//	key, err = scheme.Combine([]threshold.Share{shares[0], shares[2], shares[4]}, 32)
package shamir

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/field"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

// Name is the registered scheme name.
const Name = "prime521"

// Delimiter separates x and y in the share text.
const Delimiter = "-"

func init() {
	threshold.Register(Name, func(rng rand.Resolver) threshold.Scheme {
		return New(rng)
	})
}

// Scheme is the prime-field threshold engine.
type Scheme struct {
	rng rand.Resolver
}

var _ threshold.Scheme = (*Scheme)(nil)

// New creates the engine. rng supplies the polynomial coefficients; nil
// selects the software source.
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

// Split divides secret into total shares where any threshold of them
// reconstruct it. The secret, read as a big-endian integer, must be below
// the field modulus.
func (s *Scheme) Split(secret []byte, total, k int) ([]threshold.Share, error) {
	if err := threshold.ValidateParameters(total, k); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, threshold.ErrEmptySecret
	}

	constant, err := field.FromBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes does not fit below 2^%d-1",
			threshold.ErrSecretTooLarge, len(secret), field.Bits)
	}

	// p(x) = a0 + a1*x + ... + a(k-1)*x^(k-1), a0 = secret
	coeffs := make([]*big.Int, k)
	coeffs[0] = constant
	defer zero(coeffs)

	for i := 1; i < k; i++ {
		c, err := field.Random(s.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to generate random coefficients: %w", err)
		}
		coeffs[i] = c
	}

	shares := make([]threshold.Share, total)
	for i := range shares {
		x := i + 1
		y := evaluate(coeffs, big.NewInt(int64(x)))
		shares[i] = threshold.Share{
			ID:   x,
			Data: FormatShare(x, y),
		}
	}
	return shares, nil
}

// Combine reconstructs the secret by Lagrange interpolation at zero. Every
// share is parsed before any arithmetic. With size > 0 the secret is padded
// to exactly size bytes; with size == 0 it uses its natural width.
func (s *Scheme) Combine(shares []threshold.Share, size int) ([]byte, error) {
	if len(shares) == 0 {
		return nil, threshold.ErrNoShares
	}

	points, err := parsePoints(shares)
	if err != nil {
		return nil, err
	}

	secret, err := interpolate(points)
	if err != nil {
		return nil, err
	}

	if size <= 0 {
		out := secret.Bytes()
		if len(out) == 0 {
			out = []byte{0}
		}
		return out, nil
	}

	out, err := field.ToBytes(secret, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", threshold.ErrSecretSize, err)
	}
	return out, nil
}

// Parse implements threshold.Scheme.
func (s *Scheme) Parse(text string) (threshold.Share, error) {
	return ParseShare(text)
}

// FormatShare renders (x, y) as "<x hex>-<y hex>".
func FormatShare(x int, y *big.Int) string {
	return fmt.Sprintf("%x%s%s", x, Delimiter, y.Text(16))
}

// ParseShare parses "<x hex>-<y hex>". x must be a positive integer and y a
// field element.
func ParseShare(text string) (threshold.Share, error) {
	x, y, err := parseText(text)
	if err != nil {
		return threshold.Share{}, err
	}
	return threshold.Share{
		ID:   int(x.Int64()),
		Data: FormatShare(int(x.Int64()), y),
	}, nil
}

type point struct {
	x *big.Int
	y *big.Int
}

func parsePoints(shares []threshold.Share) ([]point, error) {
	points := make([]point, 0, len(shares))
	seen := make(map[int64]bool, len(shares))

	for i, share := range shares {
		x, y, err := parseText(share.Data)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		if share.ID != 0 && int64(share.ID) != x.Int64() {
			return nil, fmt.Errorf("share %d: %w: id %d does not match x %d",
				i+1, threshold.ErrMalformedShare, share.ID, x.Int64())
		}
		if seen[x.Int64()] {
			return nil, fmt.Errorf("share %d: %w: x %d repeated",
				i+1, threshold.ErrDuplicateShare, x.Int64())
		}
		seen[x.Int64()] = true
		points = append(points, point{x: x, y: y})
	}
	return points, nil
}

func parseText(text string) (*big.Int, *big.Int, error) {
	parts := strings.Split(strings.TrimSpace(text), Delimiter)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w: expected <x>%s<y>", threshold.ErrMalformedShare, Delimiter)
	}

	x, err := parseHex(parts[0])
	if err != nil {
		return nil, nil, err
	}
	if x.Sign() == 0 || !x.IsInt64() || x.Int64() > math.MaxInt32 {
		return nil, nil, fmt.Errorf("%w: x out of range", threshold.ErrMalformedShare)
	}

	y, err := parseHex(parts[1])
	if err != nil {
		return nil, nil, err
	}
	if !field.InRange(y) {
		return nil, nil, fmt.Errorf("%w: y is not a field element", threshold.ErrMalformedShare)
	}
	return x, y, nil
}

func parseHex(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty component", threshold.ErrMalformedShare)
	}
	for _, c := range s {
		if !isHexDigit(c) {
			return nil, fmt.Errorf("%w: invalid hex %q", threshold.ErrMalformedShare, s)
		}
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: invalid hex %q", threshold.ErrMalformedShare, s)
	}
	return n, nil
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// evaluate returns p(x) by accumulating coeffs[i] * x^i with a running
// power of x, reducing after every step.
func evaluate(coeffs []*big.Int, x *big.Int) *big.Int {
	result := big.NewInt(0)
	power := big.NewInt(1)
	for _, c := range coeffs {
		result = field.Add(result, field.Mul(c, power))
		power = field.Mul(power, x)
	}
	return result
}

// interpolate evaluates the interpolating polynomial at zero:
// secret = Σ_j y_j * Π_{m≠j} x_m / (x_m - x_j)
func interpolate(points []point) (*big.Int, error) {
	secret := big.NewInt(0)

	for j, pj := range points {
		basis := big.NewInt(1)
		for m, pm := range points {
			if m == j {
				continue
			}
			inv, err := field.Inverse(field.Sub(pm.x, pj.x))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", threshold.ErrDuplicateShare, err)
			}
			basis = field.Mul(basis, field.Mul(pm.x, inv))
		}
		secret = field.Add(secret, field.Mul(pj.y, basis))
	}
	return secret, nil
}

func zero(values []*big.Int) {
	for _, v := range values {
		if v != nil {
			v.SetInt64(0)
		}
	}
}
