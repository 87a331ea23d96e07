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

// Package metrics provides Prometheus instrumentation for keysplit sessions
// and the HTTP API.
package metrics

import (
	"context"
	"runtime"
	"time"
)

// Flow label values for SessionState.
const (
	FlowOwner    = "owner"
	FlowRecovery = "recovery"
)

// SessionSnapshot is the session state sampled on every collection.
type SessionSnapshot struct {
	OwnerState    string
	RecoveryState string
	AuditRecords  int
	PayloadStored bool
}

// SnapshotFunc samples the session. It must be safe to call from the
// collector goroutine.
type SnapshotFunc func() SessionSnapshot

// ResourceCollector periodically samples the session state machines and
// the process gauges.
type ResourceCollector struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	started  time.Time
	snapshot SnapshotFunc
}

// NewResourceCollector creates a collector that updates metrics every
// interval until ctx is cancelled or Stop is called. snapshot may be nil,
// in which case only process gauges are updated.
func NewResourceCollector(ctx context.Context, interval time.Duration, snapshot SnapshotFunc) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	return &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
		snapshot: snapshot,
	}
}

// Start collects immediately and then on every tick. It blocks.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

// Stop halts the collector.
func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}

	if rc.snapshot != nil {
		RecordSessionSnapshot(rc.snapshot())
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))

	ServerUptime.Set(time.Since(rc.started).Seconds())
}

// RecordSessionSnapshot publishes s. Exactly one state per flow is set
// to 1.
func RecordSessionSnapshot(s SessionSnapshot) {
	if !IsEnabled() {
		return
	}
	SessionState.Reset()
	SessionState.WithLabelValues(FlowOwner, s.OwnerState).Set(1)
	SessionState.WithLabelValues(FlowRecovery, s.RecoveryState).Set(1)

	AuditRecords.Set(float64(s.AuditRecords))
	if s.PayloadStored {
		PayloadStored.Set(1)
	} else {
		PayloadStored.Set(0)
	}
}

// StartResourceCollector creates a collector and runs it in a goroutine.
func StartResourceCollector(ctx context.Context, interval time.Duration, snapshot SnapshotFunc) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval, snapshot)
	go collector.Start()
	return collector
}
