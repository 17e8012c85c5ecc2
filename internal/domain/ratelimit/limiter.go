package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// window is the fixed rate limiting interval.
const window = time.Minute

// Limiter tracks request counts per caller key inside a fixed one-minute
// window. A caller may exceed the per-minute limit by up to the burst
// allowance before being rejected.
type Limiter interface {
	// Allow records one request for key. When the request is rejected,
	// retryAfter tells the caller how long until the window resets.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// UserKey builds the limiter key for an authenticated caller.
func UserKey(userID string) string {
	return "user:" + userID
}

// ClientKey builds the limiter key for an anonymous caller. forwardedFor is
// the X-Forwarded-For header; the first hop wins when present.
func ClientKey(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		if idx := strings.Index(forwardedFor, ","); idx >= 0 {
			forwardedFor = forwardedFor[:idx]
		}
		return "ip:" + strings.TrimSpace(forwardedFor)
	}
	// Strip the port from host:port addresses.
	if idx := strings.LastIndex(remoteAddr, ":"); idx > 0 && !strings.Contains(remoteAddr[idx:], "]") {
		remoteAddr = remoteAddr[:idx]
	}
	return "ip:" + strings.Trim(remoteAddr, "[]")
}

func retryAfterFor(elapsed time.Duration) time.Duration {
	remaining := window - elapsed
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining.Round(time.Second)
}

func validateLimits(perMinute, burst int) error {
	if perMinute <= 0 {
		return fmt.Errorf("per-minute limit must be positive, got %d", perMinute)
	}
	if burst < 0 {
		return fmt.Errorf("burst allowance must not be negative, got %d", burst)
	}
	return nil
}
