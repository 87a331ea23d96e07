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

package field

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModulus_IsMersenne521(t *testing.T) {
	m := Modulus()
	assert.Equal(t, Bits, m.BitLen())
	assert.True(t, m.ProbablyPrime(20))

	// Callers must not be able to mutate the package modulus.
	m.SetInt64(7)
	assert.Equal(t, Bits, Modulus().BitLen())
}

func TestAddSubMul(t *testing.T) {
	pm1 := new(big.Int).Sub(Modulus(), big.NewInt(1))

	tests := []struct {
		name string
		got  *big.Int
		want *big.Int
	}{
		{"add wraps", Add(pm1, big.NewInt(2)), big.NewInt(1)},
		{"add small", Add(big.NewInt(3), big.NewInt(4)), big.NewInt(7)},
		{"sub negative lifts", Sub(big.NewInt(1), big.NewInt(2)), pm1},
		{"sub zero", Sub(big.NewInt(9), big.NewInt(9)), big.NewInt(0)},
		{"mul wraps", Mul(pm1, pm1), big.NewInt(1)},
		{"mul small", Mul(big.NewInt(6), big.NewInt(7)), big.NewInt(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0, tt.want.Cmp(tt.got), "got %s want %s", tt.got, tt.want)
			assert.True(t, InRange(tt.got))
		})
	}
}

func TestSub_DoesNotMutateOperands(t *testing.T) {
	a := big.NewInt(5)
	b := big.NewInt(11)
	_ = Sub(a, b)
	assert.Equal(t, int64(5), a.Int64())
	assert.Equal(t, int64(11), b.Int64())
}

func TestInverse(t *testing.T) {
	for _, v := range []int64{1, 2, 3, 255, 65537} {
		a := big.NewInt(v)
		inv, err := Inverse(a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), Mul(a, inv).Int64(), "a=%d", v)
	}

	a, err := Random(rand.Reader)
	require.NoError(t, err)
	if a.Sign() != 0 {
		inv, err := Inverse(a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), Mul(a, inv).Int64())
	}
}

func TestInverse_Zero(t *testing.T) {
	_, err := Inverse(big.NewInt(0))
	assert.ErrorIs(t, err, ErrNotInvertible)

	_, err = Inverse(Modulus())
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		n, err := Random(rand.Reader)
		require.NoError(t, err)
		assert.True(t, InRange(n))
		seen[n.String()] = true
	}
	assert.Len(t, seen, 16)
}

func TestRandom_ConsumesFixedWidth(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xff}, RandomBytes*2))
	_, err := Random(src)
	require.NoError(t, err)
	assert.Equal(t, RandomBytes, src.Len())
}

func TestRandom_ShortReader(t *testing.T) {
	_, err := Random(bytes.NewReader(make([]byte, RandomBytes-1)))
	require.Error(t, err)
}

func TestRandom_ReaderError(t *testing.T) {
	_, err := Random(failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy unavailable")
}

func TestFromBytesToBytes(t *testing.T) {
	secret := make([]byte, 32)
	secret[31] = 0x01

	n, err := FromBytes(secret)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Int64())

	out, err := ToBytes(n, 32)
	require.NoError(t, err)
	assert.Equal(t, secret, out)

	_, err = ToBytes(big.NewInt(0x1234), 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ToBytes(big.NewInt(1), 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	tooBig := bytes.Repeat([]byte{0xff}, 70)
	_, err = FromBytes(tooBig)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}
