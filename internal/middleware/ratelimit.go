package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/cache"
	"github.com/aiiabox/aiiabox/internal/model"
)

// RateLimiter spends from Redis token buckets.
type RateLimiter interface {
	CheckTokenRateLimit(ctx context.Context, tokenID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig configures RateLimitAPI and RateLimitLogin.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	// APIEnabled throttles authenticated calls per token, sized by tier.
	APIEnabled bool
	// LoginEnabled throttles credential exchange per client IP.
	LoginEnabled bool
	LoginRPS     float64
	LoginBurst   int
}

// RateLimitAPI throttles each token according to its tier and reports the
// bucket in X-RateLimit-* headers. Place it after Auth.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.APIEnabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.AuthFromContext(r.Context())
			if caller == nil {
				next.ServeHTTP(w, r)
				return
			}
			limit := model.LimitForTier(caller.RateLimitTier)
			if limit.PerMinute == 0 {
				next.ServeHTTP(w, r)
				return
			}

			res, err := cfg.Limiter.CheckTokenRateLimit(r.Context(), caller.TokenID, limit.PerMinute, limit.Burst)
			if err != nil {
				cfg.Logger.Error("token rate limit check failed",
					"error", err, "token_prefix", caller.TokenPrefix)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit.PerMinute))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				throttled(cfg.Logger, r, "api", res.RetryAfter, "token_prefix", caller.TokenPrefix)
				writeRateLimitError(w, res.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitLogin throttles credential exchange per client IP.
func RateLimitLogin(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.LoginEnabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.CheckIPRateLimit(r.Context(), "login", clientIP(r), cfg.LoginRPS, cfg.LoginBurst)
			if err != nil {
				cfg.Logger.Error("login rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				throttled(cfg.Logger, r, "login", res.RetryAfter)
				writeRateLimitError(w, res.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func throttled(logger *slog.Logger, r *http.Request, kind string, retry time.Duration, extra ...any) {
	args := append([]any{
		"type", kind,
		"endpoint", r.Method + " " + r.URL.Path,
		"retry_after_seconds", int64(retry.Seconds()),
		"request_id", GetRequestID(r.Context()),
	}, extra...)
	logger.Warn("rate limit exceeded", args...)
}

// writeRateLimitError answers 429 with a whole-second Retry-After of at
// least one.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := max(1, int((retryAfter+time.Second-1)/time.Second))
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Request was throttled. Expected available in %d seconds.", seconds))
}

// clientIP is the request's remote host. chi's RealIP has already replaced
// RemoteAddr with the forwarded client address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
