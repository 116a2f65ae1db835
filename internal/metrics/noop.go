package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
func (n *NoopRecorder) IncAuthAttempt(result string)                                               {}
func (n *NoopRecorder) IncChatCreated()                                                            {}
func (n *NoopRecorder) IncMessageCreated(role string)                                              {}
func (n *NoopRecorder) IncCompletionJob(status string)                                             {}
func (n *NoopRecorder) ObserveCompletionDuration(duration time.Duration)                           {}
func (n *NoopRecorder) SetCompletionQueueDepth(depth int64)                                        {}
