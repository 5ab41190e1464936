// Package ratelimit bounds outbound provider requests within a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWindow       = time.Minute
	defaultPollInterval = 2 * time.Second
)

// Limiter admits requests while fewer than limit admissions happened inside
// the trailing window. One limiter is shared by reference among all workers
// that talk to the same provider.
type Limiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	poll       time.Duration
	now        func() time.Time
	admissions []time.Time
}

// Option customizes limiter construction.
type Option func(*Limiter)

// WithWindow overrides the sliding window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithPollInterval overrides the Wait polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		if interval > 0 {
			l.poll = interval
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a limiter admitting at most limit requests per window.
func New(limit int, opts ...Option) *Limiter {
	l := &Limiter{
		limit:  limit,
		window: defaultWindow,
		poll:   defaultPollInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit reserves one request slot if capacity remains in the window.
// Eviction, the capacity check, and the append happen under one lock so
// concurrent callers cannot both take the last slot.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.admissions[:0]
	for _, stamp := range l.admissions {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	l.admissions = kept

	if len(l.admissions) >= l.limit {
		return false
	}
	l.admissions = append(l.admissions, now)
	return true
}

// Wait blocks until Admit succeeds or the context is cancelled, polling on a
// fixed cadence rather than computing the exact next-free instant.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Admit() {
			return nil
		}
		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
