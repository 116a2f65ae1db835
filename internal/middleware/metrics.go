package middleware

import (
	"net/http"
	"time"

	"github.com/aiiabox/aiiabox/internal/metrics"
)

// Metrics records request count and latency labelled by route pattern
// rather than raw path.
func Metrics(recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := wrapResponseWriter(w)

			next.ServeHTTP(sr, r)

			recorder.ObserveHTTPRequest(r.Method, routePattern(r), sr.status, time.Since(start))
		})
	}
}
