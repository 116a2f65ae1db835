package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aiiabox"

// PrometheusRecorder exports metrics through a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	authAttempts       *prometheus.CounterVec
	chatsCreated       prometheus.Counter
	messagesCreated    *prometheus.CounterVec
	completionJobs     *prometheus.CounterVec
	completionDuration prometheus.Histogram
	completionQueue    prometheus.Gauge
}

// NewPrometheus registers all application collectors plus Go runtime and
// process collectors on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Token authentication attempts by result.",
		}, []string{"result"}),
		chatsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chats_created_total",
			Help:      "Chats created.",
		}),
		messagesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_created_total",
			Help:      "Messages created by role.",
		}, []string{"role"}),
		completionJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_jobs_total",
			Help:      "Completion job transitions by status.",
		}, []string{"status"}),
		completionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Latency of LLM completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		completionQueue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "completion_queue_depth",
			Help:      "Entries in the completion job stream.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for tests.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncAuthAttempt(result string) {
	p.authAttempts.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncChatCreated() {
	p.chatsCreated.Inc()
}

func (p *PrometheusRecorder) IncMessageCreated(role string) {
	p.messagesCreated.WithLabelValues(role).Inc()
}

func (p *PrometheusRecorder) IncCompletionJob(status string) {
	p.completionJobs.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveCompletionDuration(duration time.Duration) {
	p.completionDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetCompletionQueueDepth(depth int64) {
	p.completionQueue.Set(float64(depth))
}

var _ Recorder = (*PrometheusRecorder)(nil)
