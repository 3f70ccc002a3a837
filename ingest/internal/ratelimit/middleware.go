package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/metrics"
)

// LimitExceededMessage is returned to clients over their quota.
const LimitExceededMessage = "Too many requests from this IP, please try again later."

type limitExceeded struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// Middleware rejects requests from client IPs over their quota with 429.
// Limiter failures are logged and the request is let through.
func Middleware(limiter RateLimiter, window time.Duration, logger *logging.Logger) func(http.Handler) http.Handler {
	retryAfter := int(math.Ceil(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.GetClientIP(r)

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				metrics.RateLimitErrors.Inc()
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					logging.IP(ip), logging.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded", logging.IP(ip), logging.Path(r.URL.Path))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, limitExceeded{
					Error:      LimitExceededMessage,
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
