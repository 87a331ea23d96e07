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

package storage_test

import (
	"testing"

	"github.com/jeremyhahn/go-keysplit/pkg/storage"
	"github.com/jeremyhahn/go-keysplit/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	backend := memory.New()
	defer backend.Close()

	require.NoError(t, storage.PutJSON(backend, storage.PayloadKey, record{Name: "a", Count: 3}))

	var got record
	require.NoError(t, storage.GetJSON(backend, storage.PayloadKey, &got))
	assert.Equal(t, record{Name: "a", Count: 3}, got)

	keys, err := backend.List(storage.SessionPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.PayloadKey}, keys)
}

func TestGetJSON_Errors(t *testing.T) {
	backend := memory.New()

	var got record
	assert.ErrorIs(t, storage.GetJSON(backend, storage.ConfigKey, &got), storage.ErrNotFound)

	require.NoError(t, backend.Put(storage.ConfigKey, []byte("{not json")))
	assert.ErrorIs(t, storage.GetJSON(backend, storage.ConfigKey, &got), storage.ErrInvalidData)

	assert.ErrorIs(t, storage.PutJSON(backend, storage.ConfigKey, make(chan int)), storage.ErrInvalidData)
}

// listOnly hides the Pinger implementation of the wrapped backend.
type listOnly struct{ storage.Backend }

func TestPing_FallsBackToList(t *testing.T) {
	backend := memory.New()
	wrapped := listOnly{backend}
	require.NoError(t, storage.Ping(wrapped))

	require.NoError(t, backend.Close())
	assert.ErrorIs(t, storage.Ping(wrapped), storage.ErrClosed)
}
