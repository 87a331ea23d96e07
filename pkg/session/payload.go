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

package session

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keysplit/pkg/crypto/symmetric"
	"github.com/jeremyhahn/go-keysplit/pkg/encoding"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/jeremyhahn/go-keysplit/pkg/validation"
)

// DefaultMimeType is used when a file does not declare one.
const DefaultMimeType = "application/octet-stream"

// File is the plaintext handed to the owner flow.
type File struct {
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Data     []byte `json:"data" yaml:"-"`
}

// Payload is the encrypted file record kept in the session store. All
// binary fields are text encoded. Payloads are values and never modified
// after sealing.
type Payload struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	MimeType    string    `json:"mime_type" yaml:"mime_type"`
	Size        int64     `json:"size" yaml:"size"`
	Ciphertext  string    `json:"ciphertext" yaml:"ciphertext"`
	IV          string    `json:"iv" yaml:"iv"`
	ContentHash string    `json:"content_hash" yaml:"content_hash"`
	Algorithm   string    `json:"algorithm" yaml:"algorithm"`
	Scheme      string    `json:"scheme" yaml:"scheme"`
	Threshold   int       `json:"threshold" yaml:"threshold"`
	TotalShares int       `json:"total_shares" yaml:"total_shares"`
	KeySize     int       `json:"key_size" yaml:"key_size"`
	Compressed  bool      `json:"compressed" yaml:"compressed"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks that every field is present and decodable.
func (p Payload) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	if err := validation.ValidateFileName(p.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validation.ValidateMimeType(p.MimeType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidPayload)
	}
	if p.Algorithm == "" || p.Scheme == "" {
		return fmt.Errorf("%w: missing algorithm or scheme", ErrInvalidPayload)
	}
	if err := threshold.ValidateParameters(p.TotalShares, p.Threshold); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.KeySize != symmetric.KeySize {
		return fmt.Errorf("%w: key size %d", ErrInvalidPayload, p.KeySize)
	}
	if _, _, _, err := p.decode(); err != nil {
		return err
	}
	return nil
}

func (p Payload) decode() (ciphertext, iv, hash []byte, err error) {
	ciphertext, err = encoding.DecodeBase64(p.Ciphertext)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext: %v", ErrInvalidPayload, err)
	}
	if len(ciphertext) < symmetric.TagSize {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidPayload)
	}
	iv, err = encoding.DecodeHex(p.IV)
	if err != nil || len(iv) != symmetric.IVSize {
		return nil, nil, nil, fmt.Errorf("%w: iv must be %d hex-encoded bytes", ErrInvalidPayload, symmetric.IVSize)
	}
	hash, err = encoding.DecodeHex(p.ContentHash)
	if err != nil || len(hash) != symmetric.HashSize {
		return nil, nil, nil, fmt.Errorf("%w: content hash must be %d hex-encoded bytes", ErrInvalidPayload, symmetric.HashSize)
	}
	return ciphertext, iv, hash, nil
}

// Sealed is the result of one owner flow: the payload and its shares,
// created together. The raw key is not part of it.
type Sealed struct {
	Payload Payload           `json:"payload" yaml:"payload"`
	Shares  []threshold.Share `json:"shares" yaml:"shares"`
}

// Recovered is the result of a successful recovery.
type Recovered struct {
	Payload    Payload `json:"payload" yaml:"payload"`
	Data       []byte  `json:"data" yaml:"-"`
	SharesUsed int     `json:"shares_used" yaml:"shares_used"`
}
