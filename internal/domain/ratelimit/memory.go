package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowState struct {
	count int
	start time.Time
}

// MemoryLimiter is the in-process store. Suitable for a single gateway
// instance; use the Redis store when running more than one replica.
type MemoryLimiter struct {
	perMinute int
	burst     int
	now       func() time.Time

	mu          sync.Mutex
	windows     map[string]*windowState
	lastCleanup time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter.
func NewMemoryLimiter(perMinute, burst int) (*MemoryLimiter, error) {
	if err := validateLimits(perMinute, burst); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		perMinute: perMinute,
		burst:     burst,
		now:       time.Now,
		windows:   make(map[string]*windowState),
	}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	state, ok := l.windows[key]
	if !ok || now.Sub(state.start) >= window {
		l.windows[key] = &windowState{count: 1, start: now}
		return true, 0, nil
	}

	if state.count < l.perMinute+l.burst {
		state.count++
		return true, 0, nil
	}

	return false, retryAfterFor(now.Sub(state.start)), nil
}

// cleanupLocked drops expired windows at most once per minute.
func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < window {
		return
	}
	l.lastCleanup = now
	for key, state := range l.windows {
		if now.Sub(state.start) >= window {
			delete(l.windows, key)
		}
	}
}
