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
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOptimal(t *testing.T) {
	got := SelectOptimal()
	if HasAESNI() {
		assert.Equal(t, AES256GCM, got)
	} else {
		assert.Equal(t, ChaCha20Poly1305, got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty is auto", "", SelectOptimal(), false},
		{"auto", "auto", SelectOptimal(), false},
		{"aes canonical", "aes-256-gcm", AES256GCM, false},
		{"aes jwe alias", "A256GCM", AES256GCM, false},
		{"aes backend alias", "aes256-gcm", AES256GCM, false},
		{"chacha canonical", "chacha20-poly1305", ChaCha20Poly1305, false},
		{"chacha mixed case", "ChaCha20-Poly1305", ChaCha20Poly1305, false},
		{"unknown", "des-cbc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlgorithmPredicates(t *testing.T) {
	assert.True(t, IsAESGCM(AES256GCM))
	assert.False(t, IsAESGCM(ChaCha20Poly1305))
	assert.True(t, IsChaCha(ChaCha20Poly1305))
	assert.False(t, IsChaCha(AES256GCM))
}

func TestNonceTracker_DetectsReuse(t *testing.T) {
	tracker := NewNonceTracker(0)
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	require.NoError(t, tracker.Record(nonce))
	assert.True(t, tracker.Seen(nonce))
	assert.ErrorIs(t, tracker.Record(nonce), ErrNonceReuse)
	assert.Equal(t, uint64(1), tracker.Used())
}

func TestNonceTracker_InvocationLimit(t *testing.T) {
	tracker := NewNonceTracker(2)
	for i := byte(0); i < 2; i++ {
		nonce := make([]byte, NonceSize)
		nonce[0] = i
		require.NoError(t, tracker.Record(nonce))
	}
	assert.ErrorIs(t, tracker.Record(bytes.Repeat([]byte{0xff}, NonceSize)), ErrKeyExhausted)
}

func TestNonceTracker_WrongSize(t *testing.T) {
	tracker := NewNonceTracker(0)
	assert.Error(t, tracker.Record(make([]byte, 8)))
	assert.False(t, tracker.Seen(make([]byte, 8)))
}

func TestNonceTracker_Reset(t *testing.T) {
	tracker := NewNonceTracker(0)
	nonce := make([]byte, NonceSize)
	require.NoError(t, tracker.Record(nonce))

	tracker.Reset()
	assert.Zero(t, tracker.Used())
	assert.False(t, tracker.Seen(nonce))
}

func TestNonceTracker_Concurrent(t *testing.T) {
	tracker := NewNonceTracker(0)
	nonce := make([]byte, NonceSize)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Record(nonce) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}
