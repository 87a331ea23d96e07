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

package shamir

import (
	"bytes"
	crand "crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"testing"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/field"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shareFormat = regexp.MustCompile(`^[0-9a-f]+-[0-9a-f]+$`)

func randomSecret(t *testing.T, size int) []byte {
	t.Helper()
	secret := make([]byte, size)
	_, err := crand.Read(secret)
	require.NoError(t, err)
	return secret
}

func pick(shares []threshold.Share, ids ...int) []threshold.Share {
	out := make([]threshold.Share, 0, len(ids))
	for _, id := range ids {
		out = append(out, shares[id-1])
	}
	return out
}

func TestSplit_BasicFunctionality(t *testing.T) {
	scheme := New(nil)
	shares, err := scheme.Split(randomSecret(t, 32), 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	for i, share := range shares {
		assert.Equal(t, i+1, share.ID)
		assert.Regexp(t, shareFormat, share.Data)
	}
}

func TestRoundTrip_AllParameters(t *testing.T) {
	scheme := New(nil)

	for n := 2; n <= 10; n++ {
		for k := 2; k <= n; k++ {
			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				secret := randomSecret(t, 32)
				shares, err := scheme.Split(secret, n, k)
				require.NoError(t, err)

				// First k, last k, and every other share from the end.
				subsets := [][]threshold.Share{
					shares[:k],
					shares[n-k:],
				}
				var alternating []threshold.Share
				for i := n - 1; i >= 0 && len(alternating) < k; i -= 2 {
					alternating = append(alternating, shares[i])
				}
				if len(alternating) == k {
					subsets = append(subsets, alternating)
				}

				for i, subset := range subsets {
					got, err := scheme.Combine(subset, 32)
					require.NoError(t, err, "subset %d", i)
					assert.Equal(t, secret, got, "subset %d", i)
				}
			})
		}
	}
}

func TestCombine_ZeroSecretScenario(t *testing.T) {
	scheme := New(nil)
	secret := make([]byte, 32)

	shares, err := scheme.Split(secret, 5, 3)
	require.NoError(t, err)

	ids := make([]int, len(shares))
	for i, s := range shares {
		ids[i] = s.ID
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)

	got, err := scheme.Combine(pick(shares, 1, 3, 5), 32)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	got, err = scheme.Combine(pick(shares, 2, 4, 5), 32)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestCombine_MoreThanThreshold(t *testing.T) {
	scheme := New(nil)
	secret := randomSecret(t, 32)

	shares, err := scheme.Split(secret, 7, 3)
	require.NoError(t, err)

	got, err := scheme.Combine(shares, 32)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestCombine_OrderIndependence(t *testing.T) {
	scheme := New(nil)
	secret := randomSecret(t, 32)

	shares, err := scheme.Split(secret, 6, 3)
	require.NoError(t, err)

	orders := [][]int{{1, 4, 6}, {6, 1, 4}, {4, 6, 1}, {6, 4, 1}}
	for _, order := range orders {
		got, err := scheme.Combine(pick(shares, order...), 32)
		require.NoError(t, err)
		assert.Equal(t, secret, got, "order %v", order)
	}
}

func TestCombine_BelowThresholdDoesNotReconstruct(t *testing.T) {
	scheme := New(nil)
	secret := bytes.Repeat([]byte{0x42}, 32)

	shares, err := scheme.Split(secret, 5, 3)
	require.NoError(t, err)

	for _, subset := range [][]threshold.Share{pick(shares, 1, 2), pick(shares, 3, 5), pick(shares, 2, 4)} {
		got, err := scheme.Combine(subset, 0)
		require.NoError(t, err)
		assert.NotEqual(t, secret, got)
	}
}

func TestCombine_LeadingZeroBytesPadded(t *testing.T) {
	scheme := New(nil)
	secret := make([]byte, 32)
	secret[30] = 0x01
	secret[31] = 0xff

	shares, err := scheme.Split(secret, 4, 2)
	require.NoError(t, err)

	got, err := scheme.Combine(pick(shares, 2, 4), 32)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	natural, err := scheme.Combine(pick(shares, 1, 3), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xff}, natural)
}

func TestCombine_NaturalWidthOfZero(t *testing.T) {
	scheme := New(nil)
	shares, err := scheme.Split([]byte{0x00}, 3, 2)
	require.NoError(t, err)

	got, err := scheme.Combine(shares[:2], 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, got)
}

func TestCombine_SizeOverflow(t *testing.T) {
	scheme := New(nil)
	shares, err := scheme.Split(randomSecret(t, 32), 3, 2)
	require.NoError(t, err)

	_, err = scheme.Combine(shares[:2], 8)
	assert.ErrorIs(t, err, threshold.ErrSecretSize)
}

func TestCombine_MalformedShares(t *testing.T) {
	scheme := New(nil)
	valid, err := scheme.Split(randomSecret(t, 32), 3, 2)
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
	}{
		{"invalid hex", "zz-11"},
		{"missing delimiter", "0123abcd"},
		{"extra delimiter", "1-2-3"},
		{"empty x", "-5"},
		{"empty y", "1-"},
		{"zero x", "0-5"},
		{"sign prefix", "+1-5"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := []threshold.Share{{Data: tt.text}, valid[1]}
			_, err := scheme.Combine(shares, 32)
			assert.ErrorIs(t, err, threshold.ErrMalformedShare)

			_, err = scheme.Parse(tt.text)
			assert.ErrorIs(t, err, threshold.ErrMalformedShare)
		})
	}
}

func TestCombine_YOutsideField(t *testing.T) {
	scheme := New(nil)
	tooBig := field.Modulus().Text(16)
	_, err := scheme.Combine([]threshold.Share{{Data: "1-" + tooBig}, {Data: "2-1"}}, 0)
	assert.ErrorIs(t, err, threshold.ErrMalformedShare)
}

func TestCombine_DuplicateShares(t *testing.T) {
	scheme := New(nil)
	shares, err := scheme.Split(randomSecret(t, 32), 5, 3)
	require.NoError(t, err)

	_, err = scheme.Combine(pick(shares, 1, 2, 2), 32)
	assert.ErrorIs(t, err, threshold.ErrDuplicateShare)

	// Same x, different y.
	forged := threshold.Share{Data: "1-abc"}
	_, err = scheme.Combine([]threshold.Share{shares[0], forged, shares[2]}, 32)
	assert.ErrorIs(t, err, threshold.ErrDuplicateShare)
}

func TestCombine_IDMismatch(t *testing.T) {
	scheme := New(nil)
	shares, err := scheme.Split(randomSecret(t, 32), 3, 2)
	require.NoError(t, err)

	bad := shares[0]
	bad.ID = 3
	_, err = scheme.Combine([]threshold.Share{bad, shares[1]}, 32)
	assert.ErrorIs(t, err, threshold.ErrMalformedShare)
}

func TestCombine_NoShares(t *testing.T) {
	_, err := New(nil).Combine(nil, 32)
	assert.ErrorIs(t, err, threshold.ErrNoShares)
}

func TestSplit_ParameterValidation(t *testing.T) {
	scheme := New(nil)
	secret := randomSecret(t, 32)

	tests := []struct {
		name      string
		total     int
		threshold int
	}{
		{"threshold too low", 5, 1},
		{"total less than threshold", 3, 5},
		{"total exceeds maximum", 256, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scheme.Split(secret, tt.total, tt.threshold)
			assert.ErrorIs(t, err, threshold.ErrInvalidParameters)
		})
	}
}

func TestSplit_SecretBounds(t *testing.T) {
	scheme := New(nil)

	_, err := scheme.Split(nil, 5, 3)
	assert.ErrorIs(t, err, threshold.ErrEmptySecret)

	_, err = scheme.Split(bytes.Repeat([]byte{0xff}, 66), 5, 3)
	assert.ErrorIs(t, err, threshold.ErrSecretTooLarge)

	// The largest 64-byte value still fits below 2^521-1.
	big64 := bytes.Repeat([]byte{0xff}, 64)
	shares, err := scheme.Split(big64, 3, 2)
	require.NoError(t, err)
	got, err := scheme.Combine(shares[1:], 64)
	require.NoError(t, err)
	assert.Equal(t, big64, got)
}

func TestSplit_DeterministicWithInjectedSource(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5a}, field.RandomBytes*4)
	secret := randomSecret(t, 32)

	a, err := New(rand.NewReaderResolver(bytes.NewReader(seed))).Split(secret, 5, 3)
	require.NoError(t, err)
	b, err := New(rand.NewReaderResolver(bytes.NewReader(seed))).Split(secret, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_RandomFailure(t *testing.T) {
	scheme := New(rand.NewReaderResolver(bytes.NewReader(nil)))
	_, err := scheme.Split(randomSecret(t, 32), 5, 3)
	assert.Error(t, err)
}

func TestFormatParseShare(t *testing.T) {
	assert.Equal(t, "a-ff", FormatShare(10, big.NewInt(255)))
	assert.Equal(t, "1-0", FormatShare(1, big.NewInt(0)))

	share, err := ParseShare("  A-FF\n")
	require.NoError(t, err)
	assert.Equal(t, 10, share.ID)
	assert.Equal(t, "a-ff", share.Data)
}

func TestEvaluate(t *testing.T) {
	// p(x) = 3 + 2x + x^2
	coeffs := []*big.Int{big.NewInt(3), big.NewInt(2), big.NewInt(1)}
	assert.Equal(t, int64(3), evaluate(coeffs, big.NewInt(0)).Int64())
	assert.Equal(t, int64(6), evaluate(coeffs, big.NewInt(1)).Int64())
	assert.Equal(t, int64(11), evaluate(coeffs, big.NewInt(2)).Int64())
}

func TestRegistered(t *testing.T) {
	scheme, err := threshold.New(Name, nil)
	require.NoError(t, err)
	assert.Equal(t, Name, scheme.Name())
	assert.Contains(t, threshold.Schemes(), Name)
}

func BenchmarkSplit(b *testing.B) {
	scheme := New(nil)
	secret := make([]byte, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = scheme.Split(secret, 10, 5)
	}
}

func BenchmarkCombine(b *testing.B) {
	scheme := New(nil)
	shares, _ := scheme.Split(make([]byte, 32), 10, 5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = scheme.Combine(shares[:5], 32)
	}
}
