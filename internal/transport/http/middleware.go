package httptransport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thependalorian/cea-gateway/internal/domain/auth"
	"github.com/thependalorian/cea-gateway/internal/domain/ratelimit"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// RateLimitMiddleware rejects callers that exceed their window with 429 and
// a Retry-After hint. Verified callers are keyed per user, everyone else per
// client IP. Limiter failures fail open: an unreachable Redis must not take
// the gateway down with it.
func RateLimitMiddleware(limiter ratelimit.Limiter, tokens *auth.AuthToken, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.ClientKey(c.Request.RemoteAddr, c.GetHeader("X-Forwarded-For"))
		if tokens != nil {
			credential := auth.Resolve(c.GetHeader("Authorization"), "")
			if token := credential.BearerToken(); token != "" {
				if ok, userID, err := tokens.VerifyToken(token); err == nil && ok {
					key = ratelimit.UserKey(userID)
				}
			}
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			if logger != nil {
				logger.WarnTag("ratelimit", "limiter unavailable, allowing request: %v", err)
			}
			c.Next()
			return
		}
		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": seconds,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
