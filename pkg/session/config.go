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

	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
)

const (
	// DefaultTotalShares is N for a fresh session.
	DefaultTotalShares = 5

	// DefaultThreshold is K for a fresh session.
	DefaultThreshold = 3

	// DefaultMaxShares is the ceiling on N.
	DefaultMaxShares = 10
)

// AppConfig is the sharing configuration of a session. A valid config
// satisfies 2 <= Threshold <= TotalShares <= MaxShares.
type AppConfig struct {
	TotalShares int `json:"total_shares" yaml:"total_shares" mapstructure:"total_shares"`
	Threshold   int `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	MaxShares   int `json:"max_shares" yaml:"max_shares" mapstructure:"max_shares"`
}

// DefaultAppConfig returns 3 of 5 with a ceiling of 10.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		TotalShares: DefaultTotalShares,
		Threshold:   DefaultThreshold,
		MaxShares:   DefaultMaxShares,
	}
}

// Validate checks the configuration invariants.
func (c AppConfig) Validate() error {
	if c.MaxShares < threshold.MinThreshold || c.MaxShares > threshold.MaxShares {
		return fmt.Errorf("%w: max shares must be between %d and %d, got %d",
			ErrConfiguration, threshold.MinThreshold, threshold.MaxShares, c.MaxShares)
	}
	if c.TotalShares > c.MaxShares {
		return fmt.Errorf("%w: total shares (%d) exceeds maximum (%d)",
			ErrConfiguration, c.TotalShares, c.MaxShares)
	}
	if err := threshold.ValidateParameters(c.TotalShares, c.Threshold); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// WithTotalShares returns c with N set to n, lowering the threshold when it
// would exceed n. n must lie in [2, MaxShares].
func (c AppConfig) WithTotalShares(n int) (AppConfig, error) {
	if n < threshold.MinThreshold || n > c.MaxShares {
		return c, fmt.Errorf("%w: total shares must be between %d and %d, got %d",
			ErrConfiguration, threshold.MinThreshold, c.MaxShares, n)
	}
	c.TotalShares = n
	if c.Threshold > n {
		c.Threshold = n
	}
	return c, nil
}

// WithThreshold returns c with K clamped into [2, TotalShares].
func (c AppConfig) WithThreshold(k int) AppConfig {
	c.Threshold = max(threshold.MinThreshold, min(k, c.TotalShares))
	return c
}
