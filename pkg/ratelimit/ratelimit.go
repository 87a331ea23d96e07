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

// Package ratelimit throttles HTTP API calls per client using token
// buckets from golang.org/x/time/rate.
//
// Recovery attempts are the interesting target: every wrong share set costs
// the caller an authentication failure, and a throttle keeps brute force
// against a stored payload impractically slow. Forwarded-for headers are
// only honoured when TrustProxy is set, so a direct client cannot pick its
// own bucket.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval = 10 * time.Minute
	defaultMaxIdle         = 30 * time.Minute
)

// Config holds limiter settings.
type Config struct {
	Enabled bool

	// RequestsPerMinute is the sustained per-client rate.
	RequestsPerMinute int

	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int

	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP instead of
	// the connection address.
	TrustProxy bool

	// CleanupInterval and MaxIdle control eviction of idle clients.
	CleanupInterval time.Duration
	MaxIdle         time.Duration
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Enabled       bool    `json:"enabled"`
	ActiveClients int     `json:"active_clients"`
	RatePerMinute float64 `json:"rate_per_min"`
	Burst         int     `json:"burst"`
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit      rate.Limit
	burst      int
	enabled    bool
	trustProxy bool
	maxIdle    time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New creates a limiter. A nil or disabled config yields a limiter that
// allows everything. An enabled limiter runs an eviction goroutine until
// Stop is called.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = &Config{}
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		limit:      rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:      cfg.Burst,
		enabled:    cfg.Enabled,
		trustProxy: cfg.TrustProxy,
		maxIdle:    cfg.MaxIdle,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if l.burst <= 0 {
		l.burst = cfg.RequestsPerMinute
	}
	if l.maxIdle <= 0 {
		l.maxIdle = defaultMaxIdle
	}

	if l.enabled {
		interval := cfg.CleanupInterval
		if interval <= 0 {
			interval = defaultCleanupInterval
		}
		go l.evictLoop(interval)
	}
	return l
}

// IsEnabled reports whether the limiter throttles at all.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}
	return l.bucketFor(key).Allow()
}

// Wait blocks until key has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.enabled {
		return nil
	}
	return l.bucketFor(key).Wait(ctx)
}

// RetryAfter returns how long key must wait for its next token, rounded
// up to whole seconds for the Retry-After header.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if !l.enabled || l.limit <= 0 {
		return 0
	}
	r := l.bucketFor(key).Reserve()
	delay := r.Delay()
	r.Cancel()
	return time.Duration(math.Ceil(delay.Seconds())) * time.Second
}

// Stats returns the current limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Enabled:       l.enabled,
		ActiveClients: len(l.buckets),
		RatePerMinute: float64(l.limit) * 60,
		Burst:         l.burst,
	}
}

// Stop ends the eviction goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxIdle)
	evicted := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// ClientKey identifies the caller of r.
func (l *Limiter) ClientKey(r *http.Request) string {
	if l.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RejectFunc writes the response for a throttled request. Retry-After is
// already set when retry is positive.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retry time.Duration)

// Middleware throttles requests per ClientKey. A nil reject writes a plain
// 429.
func Middleware(l *Limiter, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.ClientKey(r)
			if l.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			retry := l.RetryAfter(key)
			if retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			}
			reject(w, r, retry)
		})
	}
}
