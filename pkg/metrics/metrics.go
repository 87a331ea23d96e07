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
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all keysplit metrics
	Namespace = "keysplit"

	// Label names
	LabelOperation  = "operation"
	LabelScheme     = "scheme"
	LabelStatus     = "status"
	LabelKind       = "kind"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
	LabelFlow       = "flow"
	LabelState      = "state"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSelectFile   = "select_file"
	OpSeal         = "seal"
	OpRecover      = "recover"
	OpLoadPayload  = "load_payload"
	OpConfigChange = "config_change"
)

var (
	// OperationsTotal counts session operations by type, scheme and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of session operations by type, scheme, and status",
		},
		[]string{LabelOperation, LabelScheme, LabelStatus},
	)

	// OperationDuration tracks session operation latency in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of session operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation, LabelScheme},
	)

	// ErrorsTotal counts failures by operation and error kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error kind",
		},
		[]string{LabelOperation, LabelKind},
	)

	// SharesIssuedTotal counts shares produced by successful seals.
	SharesIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_issued_total",
			Help:      "Total number of shares issued by scheme",
		},
		[]string{LabelScheme},
	)

	// SharesSubmitted observes how many shares each recovery attempt used.
	SharesSubmitted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "shares_submitted",
			Help:      "Number of shares submitted per recovery attempt",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 16, 32},
		},
	)

	// PayloadBytes observes plaintext sizes of sealed files.
	PayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "payload_bytes",
			Help:      "Plaintext size of sealed files in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
	)

	// ActiveOperations is 1 while a seal or recovery is in flight.
	ActiveOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_operations",
			Help:      "Number of session operations in flight",
		},
	)

	// SessionState is 1 for the current state of each flow.
	SessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_state",
			Help:      "Current state of the owner and recovery flows",
		},
		[]string{LabelFlow, LabelState},
	)

	// AuditRecords tracks the number of retained audit records.
	AuditRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "audit_records",
			Help:      "Number of audit records currently retained",
		},
	)

	// PayloadStored is 1 while the session holds an encrypted payload.
	PayloadStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "payload_stored",
			Help:      "Whether an encrypted payload is stored (1) or not (0)",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route pattern and
	// status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// HTTPActiveRequests tracks requests currently being served.
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of HTTP requests being served",
		},
	)

	// Goroutines tracks the current number of goroutines.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records a session operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	sealed, err := sess.Seal(ctx)
//	status := metrics.StatusSuccess
//	if err != nil {
//	    status = metrics.StatusError
//	}
//	metrics.RecordOperation(metrics.OpSeal, "prime521", status, time.Since(start).Seconds())
func RecordOperation(operation, scheme, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, scheme, status).Inc()
	OperationDuration.WithLabelValues(operation, scheme).Observe(duration)
}

// RecordError records a failure of the given kind.
func RecordError(operation, kind string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordSeal records a successful seal: shares issued and plaintext size.
func RecordSeal(scheme string, shares int, size int64) {
	if !enabled.Load() {
		return
	}
	SharesIssuedTotal.WithLabelValues(scheme).Add(float64(shares))
	PayloadBytes.Observe(float64(size))
}

// RecordSharesSubmitted records the share count of a recovery attempt.
func RecordSharesSubmitted(count int) {
	if !enabled.Load() {
		return
	}
	SharesSubmitted.Observe(float64(count))
}

// OperationStarted marks a session operation in flight. The returned
// function marks it done.
func OperationStarted() func() {
	if !enabled.Load() {
		return func() {}
	}
	ActiveOperations.Inc()
	return ActiveOperations.Dec
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
