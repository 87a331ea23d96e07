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

// Package symmetric is the payload cipher adapter: 256-bit key generation,
// raw key import/export, AEAD encryption with a fresh 96-bit IV per call and
// SHA-256 content hashing.
//
// The adapter is independent of the sharing scheme. Keys are exported as
// exactly KeySize bytes so they can be handed to a threshold.Scheme as the
// secret and imported again after reconstruction.
//
// Example:
//
//	c, err := symmetric.New(&symmetric.Config{Algorithm: aead.AES256GCM})
//	key, err := c.GenerateKey()
//	sealed, err := c.Encrypt(plaintext, key)
//	plaintext, err = c.Decrypt(sealed.Ciphertext, sealed.IV, key)
package symmetric

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the raw key length in bytes (256 bits).
	KeySize = 32

	// IVSize is the nonce length in bytes (96 bits).
	IVSize = aead.NonceSize

	// TagSize is the authentication tag appended to every ciphertext.
	TagSize = 16

	// HashSize is the content hash length in bytes.
	HashSize = sha256.Size
)

var (
	// ErrAuthentication is returned when the tag check fails. A wrong key
	// and a corrupted ciphertext or IV are indistinguishable here.
	ErrAuthentication = errors.New("symmetric: message authentication failed")

	// ErrInvalidKey is returned for nil, destroyed or wrongly sized keys.
	ErrInvalidKey = errors.New("symmetric: invalid key")

	// ErrInvalidIV is returned for a wrongly sized IV.
	ErrInvalidIV = errors.New("symmetric: invalid IV")
)

// Key is symmetric key material plus the set of IVs already used with it.
type Key struct {
	mu       sync.RWMutex
	material []byte
	nonces   *aead.NonceTracker
}

func newKey(material []byte) *Key {
	return &Key{
		material: material,
		nonces:   aead.NewNonceTracker(0),
	}
}

// Size returns the key length in bytes, 0 once destroyed.
func (k *Key) Size() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.material)
}

// Destroy zeroes the key material. Any later use fails with ErrInvalidKey.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	clear(k.material)
	k.material = nil
	k.nonces.Reset()
}

// use runs fn with the key material under the read lock, so Destroy
// cannot zero the material while fn is still using it. fn must not keep
// the slice.
func (k *Key) use(fn func(material []byte) error) error {
	if k == nil {
		return ErrInvalidKey
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.material) != KeySize {
		return ErrInvalidKey
	}
	return fn(k.material)
}

// Ciphertext is the output of one Encrypt call. Ciphertext carries the
// authentication tag in its last TagSize bytes.
type Ciphertext struct {
	Ciphertext  []byte
	IV          []byte
	ContentHash []byte
}

// Cipher is the cryptographic capability injected into the session.
type Cipher interface {
	// Algorithm returns the resolved AEAD algorithm name.
	Algorithm() string

	// GenerateKey creates a fresh random 256-bit key.
	GenerateKey() (*Key, error)

	// ImportKey wraps raw key bytes. raw must be exactly KeySize bytes.
	ImportKey(raw []byte) (*Key, error)

	// ExportKey returns a copy of the raw key bytes.
	ExportKey(key *Key) ([]byte, error)

	// Encrypt seals plaintext under key with a fresh random IV and hashes
	// the plaintext.
	Encrypt(plaintext []byte, key *Key) (*Ciphertext, error)

	// Decrypt opens ciphertext. Returns ErrAuthentication if the tag does
	// not verify.
	Decrypt(ciphertext, iv []byte, key *Key) ([]byte, error)

	// Digest returns the SHA-256 digest of data.
	Digest(data []byte) []byte
}

// Config configures the cipher adapter.
type Config struct {
	// Algorithm is aead.AES256GCM, aead.ChaCha20Poly1305 or aead.Auto.
	// Empty selects aead.Auto.
	Algorithm string

	// Random supplies keys and IVs. Defaults to the software resolver.
	Random rand.Resolver
}

type adapter struct {
	algorithm string
	rng       rand.Resolver
}

var _ Cipher = (*adapter)(nil)

// New creates a cipher adapter.
func New(config *Config) (Cipher, error) {
	if config == nil {
		config = &Config{}
	}

	algorithm, err := aead.Resolve(config.Algorithm)
	if err != nil {
		return nil, err
	}

	rng := config.Random
	if rng == nil {
		rng, err = rand.NewResolver(rand.ModeSoftware)
		if err != nil {
			return nil, err
		}
	}

	return &adapter{
		algorithm: algorithm,
		rng:       rng,
	}, nil
}

func (a *adapter) Algorithm() string {
	return a.algorithm
}

func (a *adapter) GenerateKey() (*Key, error) {
	material, err := a.rng.Rand(KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newKey(material), nil
}

func (a *adapter) ImportKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKey, len(raw), KeySize)
	}
	material := make([]byte, KeySize)
	copy(material, raw)
	return newKey(material), nil
}

func (a *adapter) ExportKey(key *Key) ([]byte, error) {
	var out []byte
	err := key.use(func(material []byte) error {
		out = bytes.Clone(material)
		return nil
	})
	return out, err
}

func (a *adapter) Encrypt(plaintext []byte, key *Key) (*Ciphertext, error) {
	var sealed *Ciphertext
	err := key.use(func(material []byte) error {
		c, err := a.newAEAD(material)
		if err != nil {
			return err
		}

		iv, err := a.rng.Rand(IVSize)
		if err != nil {
			return fmt.Errorf("failed to generate IV: %w", err)
		}
		if err := key.nonces.Record(iv); err != nil {
			return err
		}

		sealed = &Ciphertext{
			Ciphertext:  c.Seal(nil, iv, plaintext, nil),
			IV:          iv,
			ContentHash: a.Digest(plaintext),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

func (a *adapter) Decrypt(ciphertext, iv []byte, key *Key) ([]byte, error) {
	var plaintext []byte
	err := key.use(func(material []byte) error {
		if len(iv) != IVSize {
			return fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidIV, len(iv), IVSize)
		}
		if len(ciphertext) < TagSize {
			return fmt.Errorf("%w: ciphertext shorter than tag", ErrAuthentication)
		}

		c, err := a.newAEAD(material)
		if err != nil {
			return err
		}

		out, err := c.Open(nil, iv, ciphertext, nil)
		if err != nil {
			return ErrAuthentication
		}
		plaintext = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (a *adapter) Digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (a *adapter) newAEAD(material []byte) (cipher.AEAD, error) {
	switch a.algorithm {
	case aead.AES256GCM:
		block, err := aes.NewCipher(material)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM mode: %w", err)
		}
		return gcm, nil
	case aead.ChaCha20Poly1305:
		c, err := chacha20poly1305.New(material)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", aead.ErrUnknownAlgorithm, a.algorithm)
	}
}
