// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import (
	"sync"
	"time"
)

// Login throttling defaults.
const (
	// DefaultLockoutThreshold is the number of failures that locks a client.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is how long a lockout lasts after the last failure.
	DefaultLockoutWindow = 15 * time.Minute

	// pruneAfter bounds the counter map before stale entries are swept.
	pruneAfter = 10000
)

// attemptCounter tracks failed logins for one client. windowStart is the
// time of the most recent failure.
type attemptCounter struct {
	count       int
	windowStart time.Time
}

// LoginLimiter throttles failed logins per client identity (the remote
// address, never the submitted email). Counters live for the process
// lifetime only.
type LoginLimiter struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	now       func() time.Time
	counters  map[string]*attemptCounter
}

// LimiterOption configures a LoginLimiter.
type LimiterOption func(*LoginLimiter)

// WithLimiterClock overrides the time source.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *LoginLimiter) {
		l.now = now
	}
}

// NewLoginLimiter creates a limiter. Non-positive arguments select the defaults.
func NewLoginLimiter(threshold int, window time.Duration, opts ...LimiterOption) *LoginLimiter {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	l := &LoginLimiter{
		threshold: threshold,
		window:    window,
		now:       time.Now,
		counters:  make(map[string]*attemptCounter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsLocked reports whether client is locked out. A counter whose window has
// elapsed is reset to zero here.
func (l *LoginLimiter) IsLocked(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.current(client)
	return c != nil && c.count >= l.threshold
}

// Remaining returns how long client stays locked, or zero.
func (l *LoginLimiter) Remaining(client string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.current(client)
	if c == nil || c.count < l.threshold {
		return 0
	}
	return c.windowStart.Add(l.window).Sub(l.now())
}

// RecordFailure counts a failed login. Failures reported while the client is
// already locked do not extend the lockout.
func (l *LoginLimiter) RecordFailure(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.current(client)
	if c == nil {
		if len(l.counters) >= pruneAfter {
			l.prune()
		}
		c = &attemptCounter{}
		l.counters[client] = c
	}
	if c.count >= l.threshold {
		return
	}
	c.count++
	c.windowStart = l.now()
}

// RecordSuccess clears the client's counter.
func (l *LoginLimiter) RecordSuccess(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counters, client)
}

// Failures returns the current failure count for client.
func (l *LoginLimiter) Failures(client string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c := l.current(client); c != nil {
		return c.count
	}
	return 0
}

// current returns the live counter for client, dropping it if its window has
// elapsed. Caller holds mu.
func (l *LoginLimiter) current(client string) *attemptCounter {
	c, ok := l.counters[client]
	if !ok {
		return nil
	}
	if l.now().Sub(c.windowStart) >= l.window {
		delete(l.counters, client)
		return nil
	}
	return c
}

// prune drops every expired counter. Caller holds mu.
func (l *LoginLimiter) prune() {
	now := l.now()
	for client, c := range l.counters {
		if now.Sub(c.windowStart) >= l.window {
			delete(l.counters, client)
		}
	}
}
