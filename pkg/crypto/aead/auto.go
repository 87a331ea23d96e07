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

// Package aead provides AEAD algorithm selection and nonce-reuse tracking
// for the payload cipher.
//
// Two 96-bit-nonce ciphers are supported:
//
//   - AES-256-GCM: preferred when the CPU has AES instructions.
//   - ChaCha20-Poly1305: preferred on CPUs without AES acceleration, where
//     it is both faster and constant-time in software.
//
// Example usage:
//
//	algorithm, err := aead.Resolve(aead.Auto)
//	// "aes-256-gcm" on CPUs with AES-NI, "chacha20-poly1305" otherwise
package aead

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Algorithm names accepted in configuration.
const (
	// Auto picks the fastest supported cipher for this CPU.
	Auto = "auto"

	// AES256GCM is AES-256 in Galois/Counter Mode.
	AES256GCM = "aes-256-gcm"

	// ChaCha20Poly1305 is the RFC 8439 AEAD.
	ChaCha20Poly1305 = "chacha20-poly1305"
)

// NonceSize is the nonce length shared by both supported ciphers.
const NonceSize = 12

// HasAESNI returns true if the CPU has AES instructions.
//
// Supported architectures:
//   - amd64: Checks X86.HasAES
//   - arm64: Checks ARM64.HasAES
//   - Other architectures return false
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal returns AES-256-GCM when the CPU accelerates AES and
// ChaCha20-Poly1305 otherwise.
func SelectOptimal() string {
	if HasAESNI() {
		return AES256GCM
	}
	return ChaCha20Poly1305
}

// Resolve normalizes a configured algorithm name. Auto and the empty string
// resolve through SelectOptimal. Common aliases ("A256GCM", "aes256-gcm",
// "ChaCha20-Poly1305") are accepted.
func Resolve(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Auto:
		return SelectOptimal(), nil
	case AES256GCM, "aes256-gcm", "a256gcm", "aes-gcm":
		return AES256GCM, nil
	case ChaCha20Poly1305, "chacha20poly1305":
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

// IsAESGCM returns true if the algorithm is the AES-GCM variant.
func IsAESGCM(algorithm string) bool {
	return algorithm == AES256GCM
}

// IsChaCha returns true if the algorithm is the ChaCha variant.
func IsChaCha(algorithm string) bool {
	return algorithm == ChaCha20Poly1305
}
