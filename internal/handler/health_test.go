package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func probe(t *testing.T, fn http.HandlerFunc, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	h := NewHealthHandler(pinger{err: errors.New("down")}, nil)

	code, body := probe(t, h.Healthz, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestReadyz(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name       string
		db, cache  HealthChecker
		storage    HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name: "all healthy", db: pinger{}, cache: pinger{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name: "database down", db: pinger{err: refused}, cache: pinger{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "error: connection refused", "redis": "ok"},
		},
		{
			name:       "nothing wired",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "not configured", "redis": "not configured"},
		},
		{
			name: "storage healthy", db: pinger{}, cache: pinger{}, storage: pinger{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok", "storage": "ok"},
		},
		{
			name: "storage down", db: pinger{}, cache: pinger{}, storage: pinger{err: errors.New("bucket missing")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok", "storage": "error: bucket missing"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := NewHealthHandler(test.db, test.cache)
			if test.storage != nil {
				h.WithStorage(test.storage)
			}

			code, body := probe(t, h.Readyz, "/readyz")
			assert.Equal(t, test.wantStatus, code)
			assert.Equal(t, test.wantChecks, body.Checks)
			if code == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
			}
		})
	}
}
