// Package ratelimit provides a sliding-window rate limiter for outbound
// generation calls.
package ratelimit

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrLimitExceeded is returned when no permit is available inside the
// current window. Callers must treat it as "retry later", never queue.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter enforces at most maxRequests acquisitions within a trailing
// window. One instance per backend identity; windows are never shared
// across backends and never persisted.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a limiter allowing maxRequests per window.
func New(maxRequests int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		logger:      logger,
	}
}

// TryAcquire records one acquisition if a permit is available.
// Returns ErrLimitExceeded otherwise. Purge, check and record happen
// under one lock so concurrent bursts cannot exceed the limit.
func (l *Limiter) TryAcquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)

	// A zero window expires every entry immediately, so it always admits.
	if l.window > 0 && len(l.timestamps) >= l.maxRequests {
		oldest := l.timestamps[0]
		l.logger.Debug("rate limit exceeded",
			"in_window", len(l.timestamps),
			"max", l.maxRequests,
			"resets_at", oldest.Add(l.window),
		)
		return ErrLimitExceeded
	}
	if l.maxRequests <= 0 {
		return ErrLimitExceeded
	}

	l.timestamps = append(l.timestamps, now)
	l.logger.Debug("rate limit permit granted",
		"in_window", len(l.timestamps),
		"max", l.maxRequests,
	)
	return nil
}

// Remaining returns the number of permits currently available.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	n := l.maxRequests - len(l.timestamps)
	if n < 0 {
		return 0
	}
	return n
}

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// purge drops timestamps older than the trailing window.
// Caller must hold mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
