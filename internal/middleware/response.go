package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// statusRecorder remembers what was sent so Logger, Metrics and Recoverer
// can inspect the response after the handler returns. Nested middleware
// share one recorder.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
	sent    bool
}

func wrapResponseWriter(w http.ResponseWriter) *statusRecorder {
	if sr, ok := w.(*statusRecorder); ok {
		return sr
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.sent {
		return
	}
	sr.status, sr.sent = code, true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.WriteHeader(http.StatusOK)
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// routePattern is the chi pattern that matched r, e.g.
// "/api/chats/{chatID}/". Only meaningful after routing has run.
// chi drops the trailing slash from joined patterns; it is restored when
// the request path has one so labels read like the registered routes.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	p := rctx.RoutePattern()
	if p == "" {
		return "unmatched"
	}
	if strings.HasSuffix(r.URL.Path, "/") && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, "*") {
		p += "/"
	}
	return p
}
