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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Options{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	l.With("flow", "owner").Info("sealed", "shares", 5)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sealed", record["msg"])
	assert.Equal(t, "owner", record["flow"])
	assert.EqualValues(t, 5, record["shares"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Warnf("shown %d", 2)
	l.Error(errors.New("boom"))
	l.MaybeError(nil)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "boom")
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Options{Level: "debug", Output: &buf})
	require.NoError(t, err)

	l.Debug("visible", "k", "v")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(&Options{Format: "xml"})
	assert.Error(t, err)

	_, err = New(&Options{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	assert.NotNil(t, DefaultLogger())
	assert.NotNil(t, NewLogger(true).Slog())
	Discard().Info("dropped")
}
