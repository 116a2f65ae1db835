package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests              map[string]uint64 // "METHOD route status"
	AuthAttempts              map[string]uint64
	ChatsCreated              uint64
	MessagesCreated           map[string]uint64
	CompletionJobs            map[string]uint64
	CompletionDurationCount   uint64
	CompletionDurationTotalNs int64
	CompletionQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu              sync.Mutex
	httpRequests    map[string]uint64
	authAttempts    map[string]uint64
	messagesCreated map[string]uint64
	completionJobs  map[string]uint64

	chatsCreated              uint64
	completionDurationCount   uint64
	completionDurationTotalNs int64
	completionQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		httpRequests:    make(map[string]uint64),
		authAttempts:    make(map[string]uint64),
		messagesCreated: make(map[string]uint64),
		completionJobs:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		HTTPRequests:              copyCounts(m.httpRequests),
		AuthAttempts:              copyCounts(m.authAttempts),
		ChatsCreated:              atomic.LoadUint64(&m.chatsCreated),
		MessagesCreated:           copyCounts(m.messagesCreated),
		CompletionJobs:            copyCounts(m.completionJobs),
		CompletionDurationCount:   atomic.LoadUint64(&m.completionDurationCount),
		CompletionDurationTotalNs: atomic.LoadInt64(&m.completionDurationTotalNs),
		CompletionQueueDepth:      atomic.LoadInt64(&m.completionQueueDepth),
	}
}

// ObserveHTTPRequest counts a request by method, route and status.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	m.inc(m.httpRequests, method+" "+route+" "+strconv.Itoa(status))
}

// IncAuthAttempt counts an authentication outcome.
func (m *InMemoryRecorder) IncAuthAttempt(result string) {
	m.inc(m.authAttempts, result)
}

// IncChatCreated increments chat created counter.
func (m *InMemoryRecorder) IncChatCreated() {
	atomic.AddUint64(&m.chatsCreated, 1)
}

// IncMessageCreated counts a created message by role.
func (m *InMemoryRecorder) IncMessageCreated(role string) {
	m.inc(m.messagesCreated, role)
}

// IncCompletionJob counts a completion job transition.
func (m *InMemoryRecorder) IncCompletionJob(status string) {
	m.inc(m.completionJobs, status)
}

// ObserveCompletionDuration records LLM call duration.
func (m *InMemoryRecorder) ObserveCompletionDuration(duration time.Duration) {
	atomic.AddUint64(&m.completionDurationCount, 1)
	atomic.AddInt64(&m.completionDurationTotalNs, duration.Nanoseconds())
}

// SetCompletionQueueDepth records the pending stream length.
func (m *InMemoryRecorder) SetCompletionQueueDepth(depth int64) {
	atomic.StoreInt64(&m.completionQueueDepth, depth)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Recorder = (*InMemoryRecorder)(nil)
