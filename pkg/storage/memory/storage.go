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

// Package memory is the in-process storage.Backend. Nothing survives a
// restart. Values may hold key material derived state, so a replaced or
// deleted value is zeroed before it is released, and Close zeroes
// everything.
package memory

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-keysplit/pkg/storage"
)

type entry struct {
	value    []byte
	revision uint64
}

// Storage is a map guarded by a RWMutex. Every value is copied in and out.
type Storage struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	revision uint64
	closed   bool
}

var (
	_ storage.Backend = (*Storage)(nil)
	_ storage.Pinger  = (*Storage)(nil)
)

// New returns an empty store.
func New() *Storage {
	return &Storage{entries: make(map[string]*entry)}
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(e.value), nil
}

// Put stores a copy of value. The previous value, if any, is zeroed.
func (s *Storage) Put(key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if old, ok := s.entries[key]; ok {
		clear(old.value)
	}
	s.revision++
	s.entries[key] = &entry{
		value:    append(make([]byte, 0, len(value)), value...),
		revision: s.revision,
	}
	return nil
}

// Delete zeroes and removes the value under key.
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return storage.ErrNotFound
	}
	clear(e.value)
	delete(s.entries, key)
	return nil
}

func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	keys := slices.Sorted(maps.Keys(s.entries))
	return slices.DeleteFunc(keys, func(k string) bool {
		return !strings.HasPrefix(k, prefix)
	}), nil
}

// Revision returns the store-wide write counter at which key was last
// written. Revisions increase with every Put, so comparing two of them
// orders the writes.
func (s *Storage) Revision(key string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, storage.ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return e.revision, nil
}

// Ping fails only after Close.
func (s *Storage) Ping() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

// Close zeroes every value. Closing twice is safe.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		clear(e.value)
	}
	s.entries = nil
	s.closed = true
	return nil
}
