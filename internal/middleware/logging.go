package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aiiabox/aiiabox/internal/auth"
)

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Logger writes one access log line per request. Request headers are not
// logged, so the Authorization token never reaches the log.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := wrapResponseWriter(w)
			probe := new(authProbe)

			next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), authProbeKey{}, probe)))

			attrs := make([]slog.Attr, 0, 12)
			attrs = append(attrs,
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status_code", sr.status),
				slog.Int("bytes", sr.written),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
			if id := GetTraceID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("trace_id", id))
			}
			if probe.userID != "" {
				attrs = append(attrs, slog.String("user_id", probe.userID))
			}

			logger.LogAttrs(r.Context(), levelFor(sr.status), "http request", attrs...)
		})
	}
}

type authProbeKey struct{}

// authProbe carries the authenticated user back up to Logger, which runs
// before Auth has populated the context.
type authProbe struct {
	userID string
}

// AuthProbe must sit directly after Auth.
func AuthProbe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := r.Context().Value(authProbeKey{}).(*authProbe); ok {
			p.userID = auth.UserIDFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
