package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const readyTimeout = 5 * time.Second

// HealthChecker is anything readiness can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name     string
	checker  HealthChecker
	optional bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler checks db and cache on every readiness probe. A nil
// checker is reported as "not configured" and does not fail the probe.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{deps: []dependency{
		{name: "postgres", checker: db},
		{name: "redis", checker: cache},
	}}
}

// WithStorage adds the avatar object store to the readiness checks.
func (h *HealthHandler) WithStorage(storage HealthChecker) *HealthHandler {
	h.deps = append(h.deps, dependency{name: "storage", checker: storage, optional: true})
	return h
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is up.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency concurrently and answers 503 if any of
// them failed.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	results := make([]error, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		if dep.checker == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = dep.checker.Ping(ctx)
		}()
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK
	for i, dep := range h.deps {
		switch {
		case dep.checker == nil:
			if !dep.optional {
				resp.Checks[dep.name] = "not configured"
			}
		case results[i] != nil:
			resp.Checks[dep.name] = "error: " + results[i].Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		default:
			resp.Checks[dep.name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
