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

package sssa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCombine(t *testing.T) {
	scheme := New()
	secret := bytes.Repeat([]byte{0x00, 0x7f, 0xff, 0x10}, 8)

	shares, err := scheme.Split(secret, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	for _, share := range shares {
		assert.Zero(t, share.ID)
		assert.Zero(t, len(share.Data)%blockLen)
	}

	subsets := [][]threshold.Share{
		{shares[0], shares[1], shares[2]},
		{shares[4], shares[2], shares[0]},
		{shares[1], shares[3], shares[4]},
		shares,
	}
	for i, subset := range subsets {
		got, err := scheme.Combine(subset, 32)
		require.NoError(t, err, "subset %d", i)
		assert.Equal(t, secret, got, "subset %d", i)
	}
}

func TestCombine_Duplicate(t *testing.T) {
	scheme := New()
	shares, err := scheme.Split([]byte("duplicate"), 3, 2)
	require.NoError(t, err)

	_, err = scheme.Combine([]threshold.Share{shares[0], shares[0]}, 0)
	assert.ErrorIs(t, err, threshold.ErrDuplicateShare)
}

func TestCombine_SizeMismatch(t *testing.T) {
	scheme := New()
	shares, err := scheme.Split([]byte("sixteen byte key"), 3, 2)
	require.NoError(t, err)

	_, err = scheme.Combine(shares[:2], 32)
	assert.ErrorIs(t, err, threshold.ErrSecretSize)
}

func TestParse(t *testing.T) {
	scheme := New()
	shares, err := scheme.Split([]byte("parse"), 3, 2)
	require.NoError(t, err)

	got, err := scheme.Parse("\t" + shares[1].Data + "\n")
	require.NoError(t, err)
	assert.Equal(t, shares[1], got)

	invalid := []string{
		"",
		"zz-11",
		strings.Repeat("A", blockLen-1),
		strings.Repeat("!", blockLen),
	}
	for _, text := range invalid {
		_, err := scheme.Parse(text)
		assert.ErrorIs(t, err, threshold.ErrMalformedShare, "text %q", text)
	}
}

func TestCombine_Errors(t *testing.T) {
	scheme := New()

	_, err := scheme.Combine(nil, 0)
	assert.ErrorIs(t, err, threshold.ErrNoShares)

	_, err = scheme.Combine([]threshold.Share{{Data: "zz-11"}}, 0)
	assert.ErrorIs(t, err, threshold.ErrMalformedShare)

	_, err = scheme.Split(nil, 3, 2)
	assert.ErrorIs(t, err, threshold.ErrEmptySecret)

	_, err = scheme.Split([]byte("x"), 2, 3)
	assert.ErrorIs(t, err, threshold.ErrInvalidParameters)
}

func TestRegistered(t *testing.T) {
	scheme, err := threshold.New(Name, nil)
	require.NoError(t, err)
	assert.Equal(t, Name, scheme.Name())
}
