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

// Package audit records one entry per attempted session state transition.
//
// The log is an ordinary in-memory, append-only list. It is not persisted,
// hash-chained or tamper evident, and appending never fails: a full log
// drops its oldest records.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Flow identifies which session flow produced a record.
type Flow string

const (
	FlowOwner    Flow = "owner"
	FlowRecovery Flow = "recovery"
	FlowConfig   Flow = "config"
)

// EventType categorizes the attempted operation.
type EventType string

const (
	EventSelectFile   EventType = "file.select"
	EventSeal         EventType = "payload.seal"
	EventLoadPayload  EventType = "payload.load"
	EventRecover      EventType = "payload.recover"
	EventConfigChange EventType = "config.change"
	EventReset        EventType = "session.reset"
)

// Outcome indicates the result of an operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// DefaultCapacity bounds a Log created with a zero capacity.
const DefaultCapacity = 1000

// Record is a single audit entry. Records are values; the log hands out
// copies.
type Record struct {
	ID         string    `json:"id" yaml:"id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Flow       Flow      `json:"flow" yaml:"flow"`
	Event      EventType `json:"event" yaml:"event"`
	From       string    `json:"from" yaml:"from"`
	To         string    `json:"to" yaml:"to"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	Kind       string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	ShareCount int       `json:"share_count" yaml:"share_count"`
	FileName   string    `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	PayloadID  string    `json:"payload_id,omitempty" yaml:"payload_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Detail     string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Log is an append-only, bounded, in-memory record list safe for
// concurrent use.
type Log struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
	now      func() time.Time
}

// NewLog creates a log holding at most capacity records. Zero or negative
// capacity selects DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		now:      time.Now,
	}
}

// Append stamps r with an ID and timestamp when missing and adds it. It
// returns the stored record.
func (l *Log) Append(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = l.now().UTC()
	}
	if len(l.records) >= l.capacity {
		l.records = append(l.records[:0], l.records[len(l.records)-l.capacity+1:]...)
	}
	l.records = append(l.records, r)
	return r
}

// Records returns a snapshot of every record, oldest first.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Filter returns the records of one flow, oldest first.
func (l *Log) Filter(flow Flow) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for _, r := range l.records {
		if r.Flow == flow {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
