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
	"context"
	"errors"
)

// Error taxonomy. Every error returned by a Session wraps exactly one of
// these; engine and cipher errors never surface unwrapped.
var (
	// ErrConfiguration is returned when 2 <= threshold <= total <= max does
	// not hold.
	ErrConfiguration = errors.New("invalid sharing configuration")

	// ErrInsufficientShares is returned when fewer shares than the payload's
	// threshold are supplied. No reconstruction is attempted.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrMalformedShare is returned for unparsable, zero-index or duplicate
	// shares.
	ErrMalformedShare = errors.New("malformed or duplicate share")

	// ErrAuthenticationFailure covers both wrong shares and corrupted
	// ciphertext.
	ErrAuthenticationFailure = errors.New("decryption failed; shares may be invalid")

	// ErrEncryptionFailure is returned when key generation, encryption or
	// splitting fails during sealing.
	ErrEncryptionFailure = errors.New("encryption failed")

	// ErrNoPayload is returned when recovery runs without a stored payload.
	ErrNoPayload = errors.New("no encrypted payload")

	// ErrInvalidPayload is returned when a loaded payload record is
	// inconsistent.
	ErrInvalidPayload = errors.New("invalid encrypted payload")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current flow state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrBusy is returned while another seal or recovery is in flight.
	ErrBusy = errors.New("another operation is in progress")

	// ErrInvalidFile is returned when the selected file has an unusable
	// name or MIME type.
	ErrInvalidFile = errors.New("invalid file")

	// ErrFileTooLarge is returned when the selected file exceeds the limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrStorage is returned when the session store fails.
	ErrStorage = errors.New("session store failure")
)

// Kind labels used in audit records, metrics and API responses.
const (
	KindConfiguration         = "configuration"
	KindInsufficientShares    = "insufficient_shares"
	KindMalformedShare        = "malformed_share"
	KindAuthenticationFailure = "authentication_failure"
	KindEncryptionFailure     = "encryption_failure"
	KindNoPayload             = "no_payload"
	KindInvalidPayload        = "invalid_payload"
	KindInvalidState          = "invalid_state"
	KindBusy                  = "busy"
	KindInvalidFile           = "invalid_file"
	KindFileTooLarge          = "file_too_large"
	KindStorage               = "storage"
	KindCanceled              = "canceled"
	KindInternal              = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrConfiguration, KindConfiguration},
	{ErrInsufficientShares, KindInsufficientShares},
	{ErrMalformedShare, KindMalformedShare},
	{ErrAuthenticationFailure, KindAuthenticationFailure},
	{ErrEncryptionFailure, KindEncryptionFailure},
	{ErrNoPayload, KindNoPayload},
	{ErrInvalidPayload, KindInvalidPayload},
	{ErrInvalidState, KindInvalidState},
	{ErrBusy, KindBusy},
	{ErrInvalidFile, KindInvalidFile},
	{ErrFileTooLarge, KindFileTooLarge},
	{ErrStorage, KindStorage},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// KindOf returns the taxonomy label of err, "" for nil and KindInternal for
// anything outside the taxonomy.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
