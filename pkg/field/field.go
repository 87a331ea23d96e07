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

// Package field implements arithmetic in the prime field GF(P) where
// P = 2^521 - 1, the Mersenne prime used by the threshold engine.
//
// Every result is reduced into [0, P). Operands are never mutated; each
// operation allocates a fresh *big.Int so callers can hold on to inputs.
package field

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Bits is the bit length of the modulus.
const Bits = 521

// RandomBytes is the number of raw random bytes consumed per field element.
// Reading well past the bit length of P keeps the modular reduction bias
// below 2^-128.
const RandomBytes = 82

var (
	// ErrNotInvertible is returned when the operand is congruent to zero.
	ErrNotInvertible = errors.New("field: element has no inverse")

	// ErrOutOfRange is returned when a value does not fit in the field or
	// in the requested byte width.
	ErrOutOfRange = errors.New("field: value out of range")
)

// p is 2^521 - 1.
var p = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), Bits), big.NewInt(1))

// Modulus returns a copy of the field modulus.
func Modulus() *big.Int {
	return new(big.Int).Set(p)
}

// Reduce returns a mod P in [0, P).
func Reduce(a *big.Int) *big.Int {
	r := new(big.Int).Mod(a, p)
	return r
}

// InRange reports whether 0 <= a < P.
func InRange(a *big.Int) bool {
	return a.Sign() >= 0 && a.Cmp(p) < 0
}

// Add returns (a + b) mod P.
func Add(a, b *big.Int) *big.Int {
	r := new(big.Int).Add(a, b)
	return r.Mod(r, p)
}

// Sub returns (a - b) mod P. A negative raw difference is lifted by P
// before the remainder is taken.
func Sub(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	if r.Sign() < 0 {
		r.Add(r, p)
	}
	return r.Mod(r, p)
}

// Mul returns (a * b) mod P.
func Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, p)
}

// Inverse returns the multiplicative inverse of a modulo P using the
// extended Euclidean algorithm.
func Inverse(a *big.Int) (*big.Int, error) {
	a = Reduce(a)
	if a.Sign() == 0 {
		return nil, ErrNotInvertible
	}

	// Invariant: oldS*a ≡ oldR (mod P)
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(p)
	oldS, s := big.NewInt(1), big.NewInt(0)
	q := new(big.Int)
	tmp := new(big.Int)

	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp)

		tmp.Mul(q, s)
		oldS, s = s, new(big.Int).Sub(oldS, tmp)
	}

	if oldR.Cmp(big.NewInt(1)) != 0 {
		return nil, ErrNotInvertible
	}
	return Reduce(oldS), nil
}

// Random draws a uniformly distributed field element from r.
func Random(r io.Reader) (*big.Int, error) {
	buf := make([]byte, RandomBytes)
	defer clear(buf)

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("field: failed to read random bytes: %w", err)
	}
	return Reduce(new(big.Int).SetBytes(buf)), nil
}

// FromBytes interprets b as a big-endian unsigned integer and checks it is
// a field element.
func FromBytes(b []byte) (*big.Int, error) {
	n := new(big.Int).SetBytes(b)
	if !InRange(n) {
		return nil, ErrOutOfRange
	}
	return n, nil
}

// ToBytes renders n as a big-endian byte slice of exactly size bytes,
// left-padded with zeros.
func ToBytes(n *big.Int, size int) ([]byte, error) {
	if n.Sign() < 0 {
		return nil, ErrOutOfRange
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid width %d", ErrOutOfRange, size)
	}
	if (n.BitLen()+7)/8 > size {
		return nil, fmt.Errorf("%w: value needs %d bytes, width is %d",
			ErrOutOfRange, (n.BitLen()+7)/8, size)
	}
	return n.FillBytes(make([]byte, size)), nil
}
