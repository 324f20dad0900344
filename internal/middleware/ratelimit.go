package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/ratelimit"
)

// RateLimit enforces the per-client request budget. Limiter failures let the
// request through.
func RateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil || !rules.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rules.IsExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			limit, window := rules.PerClientLimit()
			key := ratelimit.ClientKey(r)

			result, err := limiter.Check(r.Context(), key, limit, window)
			if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
				log.Warn("rate limiter error", slog.String("client", key), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := result.RetryAfter(time.Now())
				log.Warn("rate limit exceeded", slog.String("client", key))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, apperrors.NewRateLimitError(retryAfter).UserMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
