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

package threshold

import "fmt"

// Share is one piece of a split secret, handed to exactly one trustee.
type Share struct {
	// ID is the share index (1 to N). Zero when the text form does not
	// reveal it.
	ID int `json:"id" yaml:"id"`

	// Data is the share's text form, ready to display, copy or encode.
	Data string `json:"data" yaml:"data"`
}

// String returns a string representation of the share (for debugging)
func (s Share) String() string {
	return fmt.Sprintf("Share{ID: %d, Data: %s...}", s.ID, s.Data[:min(len(s.Data), 16)])
}

// Texts returns the Data of every share, in order.
func Texts(shares []Share) []string {
	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = s.Data
	}
	return out
}

// ParseAll parses every text with scheme, stopping at the first failure.
func ParseAll(scheme Scheme, texts []string) ([]Share, error) {
	shares := make([]Share, 0, len(texts))
	for i, text := range texts {
		share, err := scheme.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		shares = append(shares, share)
	}
	return shares, nil
}
