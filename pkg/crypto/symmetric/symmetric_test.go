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

package symmetric

import (
	"bytes"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

var algorithms = []string{aead.AES256GCM, aead.ChaCha20Poly1305}

func newCipher(t *testing.T, algorithm string) Cipher {
	t.Helper()
	c, err := New(&Config{Algorithm: algorithm})
	require.NoError(t, err)
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, aead.SelectOptimal(), c.Algorithm())
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New(&Config{Algorithm: "rot13"})
	assert.ErrorIs(t, err, aead.ErrUnknownAlgorithm)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  {},
		"byte":   {0x00},
		"text":   []byte("The quick brown fox jumps over the lazy dog"),
		"binary": bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1024),
	}

	for _, algorithm := range algorithms {
		c := newCipher(t, algorithm)
		for name, plaintext := range payloads {
			t.Run(algorithm+"/"+name, func(t *testing.T) {
				key, err := c.GenerateKey()
				require.NoError(t, err)

				sealed, err := c.Encrypt(plaintext, key)
				require.NoError(t, err)
				assert.Len(t, sealed.IV, IVSize)
				assert.Len(t, sealed.Ciphertext, len(plaintext)+TagSize)
				assert.Equal(t, c.Digest(plaintext), sealed.ContentHash)

				got, err := c.Decrypt(sealed.Ciphertext, sealed.IV, key)
				require.NoError(t, err)
				assert.Equal(t, plaintext, got)
			})
		}
	}
}

func TestEncrypt_EmptyContentHash(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)

	sealed, err := c.Encrypt(nil, key)
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, hex.EncodeToString(sealed.ContentHash))

	got, err := c.Decrypt(sealed.Ciphertext, sealed.IV, key)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c := newCipher(t, aead.ChaCha20Poly1305)
	key, err := c.GenerateKey()
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same"), key)
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEncrypt_RejectsNonceReuse(t *testing.T) {
	// An all-zero source hands out the same IV twice.
	rng := rand.NewReaderResolver(bytes.NewReader(make([]byte, KeySize+2*IVSize)))
	c, err := New(&Config{Algorithm: aead.AES256GCM, Random: rng})
	require.NoError(t, err)

	key, err := c.GenerateKey()
	require.NoError(t, err)

	_, err = c.Encrypt([]byte("first"), key)
	require.NoError(t, err)

	_, err = c.Encrypt([]byte("second"), key)
	assert.ErrorIs(t, err, aead.ErrNonceReuse)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm, func(t *testing.T) {
			c := newCipher(t, algorithm)
			key, err := c.GenerateKey()
			require.NoError(t, err)

			sealed, err := c.Encrypt([]byte("tamper"), key)
			require.NoError(t, err)

			for i := 0; i < len(sealed.Ciphertext)*8; i++ {
				ct := bytes.Clone(sealed.Ciphertext)
				ct[i/8] ^= 1 << (i % 8)
				_, err := c.Decrypt(ct, sealed.IV, key)
				require.ErrorIs(t, err, ErrAuthentication, "ciphertext bit %d", i)
			}

			for i := 0; i < len(sealed.IV)*8; i++ {
				iv := bytes.Clone(sealed.IV)
				iv[i/8] ^= 1 << (i % 8)
				_, err := c.Decrypt(sealed.Ciphertext, iv, key)
				require.ErrorIs(t, err, ErrAuthentication, "iv bit %d", i)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)
	other, err := c.GenerateKey()
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = c.Decrypt(sealed.Ciphertext, sealed.IV, other)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecrypt_InvalidInputs(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)

	_, err = c.Decrypt(make([]byte, 32), make([]byte, 8), key)
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, err = c.Decrypt(make([]byte, 4), make([]byte, IVSize), key)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = c.Decrypt(make([]byte, 32), make([]byte, IVSize), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestImportExport(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)

	raw, err := c.ExportKey(key)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)

	imported, err := c.ImportKey(raw)
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("imported"), key)
	require.NoError(t, err)
	got, err := c.Decrypt(sealed.Ciphertext, sealed.IV, imported)
	require.NoError(t, err)
	assert.Equal(t, []byte("imported"), got)

	// Exported bytes are a copy.
	raw[0] ^= 0xff
	again, err := c.ExportKey(key)
	require.NoError(t, err)
	assert.NotEqual(t, raw, again)
}

func TestImportKey_InvalidSize(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	for _, size := range []int{0, 16, 31, 33} {
		_, err := c.ImportKey(make([]byte, size))
		assert.ErrorIs(t, err, ErrInvalidKey, "size %d", size)
	}
}

func TestKey_Destroy(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)
	assert.Equal(t, KeySize, key.Size())

	key.Destroy()
	assert.Equal(t, 0, key.Size())

	_, err = c.ExportKey(key)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = c.Encrypt([]byte("x"), key)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKey_DestroyWaitsForInFlightUse(t *testing.T) {
	c := newCipher(t, aead.AES256GCM)
	key, err := c.GenerateKey()
	require.NoError(t, err)
	want, err := c.ExportKey(key)
	require.NoError(t, err)

	inUse := make(chan struct{})
	destroyed := make(chan struct{})
	err = key.use(func(material []byte) error {
		close(inUse)
		go func() {
			key.Destroy()
			close(destroyed)
		}()
		select {
		case <-destroyed:
			t.Error("Destroy returned while material was in use")
		case <-time.After(50 * time.Millisecond):
		}
		assert.Equal(t, want, material)
		return nil
	})
	require.NoError(t, err)
	<-inUse

	select {
	case <-destroyed:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not complete after use returned")
	}
	assert.Equal(t, 0, key.Size())
}

func TestKey_ConcurrentEncryptAndDestroy(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg, func(t *testing.T) {
			c := newCipher(t, alg)
			key, err := c.GenerateKey()
			require.NoError(t, err)
			raw, err := c.ExportKey(key)
			require.NoError(t, err)

			plaintext := bytes.Repeat([]byte("keysplit"), 512)
			results := make(chan *Ciphertext, 32)
			var wg sync.WaitGroup
			for range 32 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sealed, err := c.Encrypt(plaintext, key)
					if err != nil {
						assert.ErrorIs(t, err, ErrInvalidKey)
						return
					}
					results <- sealed
				}()
			}
			key.Destroy()
			wg.Wait()
			close(results)

			copyKey, err := c.ImportKey(raw)
			require.NoError(t, err)
			for sealed := range results {
				got, err := c.Decrypt(sealed.Ciphertext, sealed.IV, copyKey)
				require.NoError(t, err)
				assert.Equal(t, plaintext, got)
			}
		})
	}
}

func TestGenerateKey_RandomFailure(t *testing.T) {
	rng := rand.NewReaderResolver(bytes.NewReader(make([]byte, 4)))
	c, err := New(&Config{Algorithm: aead.AES256GCM, Random: rng})
	require.NoError(t, err)

	_, err = c.GenerateKey()
	assert.Error(t, err)
}
