// Package middleware holds the HTTP middleware shared by every API route.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

// maxRequestIDLen caps client-supplied identifiers before they reach logs.
const maxRequestIDLen = 128

type (
	requestIDKey struct{}
	traceIDKey   struct{}
)

// RequestID tags every request with an id, echoed in X-Request-ID. A sane
// client-supplied id is kept, otherwise a UUID is generated. X-Trace-ID is
// passed through when present and sane.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !printableID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)

		if trace := r.Header.Get(TraceIDHeader); printableID(trace) {
			w.Header().Set(TraceIDHeader, trace)
			ctx = context.WithValue(ctx, traceIDKey{}, trace)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func printableID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range []byte(id) {
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetTraceID returns the propagated trace id, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
