// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Auth metrics
	IncAuthAttempt(result string) // result: "success", "cache_hit", "missing_token", "invalid_format", "invalid_token"

	// Domain metrics
	IncChatCreated()
	IncMessageCreated(role string)

	// Completion pipeline metrics
	IncCompletionJob(status string) // status: "queued", "succeeded", "failed", "retried", "dead_lettered"
	ObserveCompletionDuration(duration time.Duration)
	SetCompletionQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
