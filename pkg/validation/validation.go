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

// Package validation provides input validation for names and media types
// that reach the session from files, HTTP requests and sealed records.
// A sealed record names the file it protects; recovery may write that name
// to disk, so it must never carry a path.
package validation

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

const (
	// MaxFileNameLength bounds file names.
	MaxFileNameLength = 255

	// MaxMimeTypeLength bounds media types.
	MaxMimeTypeLength = 255
)

var (
	// ErrInvalidFileName is returned for names that are empty, too long,
	// contain control characters or path elements.
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrInvalidMimeType is returned for unparsable media types.
	ErrInvalidMimeType = errors.New("invalid MIME type")
)

// ValidateFileName validates a bare file name.
// Rejects:
// - empty strings
// - null bytes and other control characters
// - names longer than MaxFileNameLength
// - "." and ".."
// - any path separator, either slash
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidFileName)
	}

	// Check for null bytes (can bypass some path checks)
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: name contains null byte", ErrInvalidFileName)
	}

	if len(name) > MaxFileNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidFileName, MaxFileNameLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("%w: name cannot be a directory reference", ErrInvalidFileName)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: name cannot contain a path separator", ErrInvalidFileName)
	}

	if hasControl(name) {
		return fmt.Errorf("%w: name contains control characters", ErrInvalidFileName)
	}
	return nil
}

// ValidateMimeType validates a media type such as "text/plain" or
// "text/plain; charset=utf-8". Empty is accepted and means the default.
func ValidateMimeType(mimeType string) error {
	if mimeType == "" {
		return nil
	}
	if len(mimeType) > MaxMimeTypeLength {
		return fmt.Errorf("%w: too long (max %d characters)", ErrInvalidMimeType, MaxMimeTypeLength)
	}
	if hasControl(mimeType) {
		return fmt.Errorf("%w: contains control characters", ErrInvalidMimeType)
	}

	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMimeType, err)
	}
	if !strings.Contains(mediaType, "/") {
		return fmt.Errorf("%w: %q has no subtype", ErrInvalidMimeType, mediaType)
	}
	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}
