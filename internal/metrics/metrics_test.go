package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.ObserveHTTPRequest("GET", "/api/chats/", 200, time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/chats/", 200, time.Millisecond)
	m.IncAuthAttempt("invalid")
	m.IncChatCreated()
	m.IncMessageCreated("user")
	m.IncCompletionJob("succeeded")
	m.ObserveCompletionDuration(2 * time.Second)
	m.SetCompletionQueueDepth(7)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.HTTPRequests["GET /api/chats/ 200"])
	assert.Equal(t, uint64(1), snap.AuthAttempts["invalid"])
	assert.Equal(t, uint64(1), snap.ChatsCreated)
	assert.Equal(t, uint64(1), snap.MessagesCreated["user"])
	assert.Equal(t, uint64(1), snap.CompletionJobs["succeeded"])
	assert.Equal(t, uint64(1), snap.CompletionDurationCount)
	assert.Equal(t, (2 * time.Second).Nanoseconds(), snap.CompletionDurationTotalNs)
	assert.Equal(t, int64(7), snap.CompletionQueueDepth)

	// Snapshots are copies.
	snap.AuthAttempts["invalid"] = 100
	assert.Equal(t, uint64(1), m.Snapshot().AuthAttempts["invalid"])
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncChatCreated()
	p.IncChatCreated()
	p.IncMessageCreated("assistant")
	p.IncAuthAttempt("success")
	p.SetCompletionQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.chatsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.messagesCreated.WithLabelValues("assistant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.authAttempts.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.completionQueue))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.ObserveHTTPRequest("POST", "/api/chats/", 201, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body,
		`aiiabox_http_requests_total{method="POST",route="/api/chats/",status="201"} 1`), body)
	assert.Contains(t, body, "aiiabox_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncChatCreated()
	r.ObserveHTTPRequest("GET", "/", 200, time.Second)
}
