package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aiiabox/aiiabox/internal/metrics"
)

// JobRunner executes jobs and records terminal failures.
type JobRunner interface {
	Run(ctx context.Context, p JobPayload) error
	Fail(ctx context.Context, p JobPayload, cause error) error
}

// WorkerConfig tunes a Worker. Zero fields take the defaults below.
type WorkerConfig struct {
	Consumer     string
	BatchSize    int
	BlockTimeout time.Duration
	// MaxRetries is how many times a failed run is retried after the first
	// attempt. Negative disables retries.
	MaxRetries int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// ClaimIdle is how long an entry may sit pending on a dead consumer
	// before it is reclaimed. Keep it well above the LLM request timeout.
	ClaimIdle time.Duration
	// ClaimEvery and BacklogEvery space out the housekeeping calls.
	// Negative disables them.
	ClaimEvery   time.Duration
	BacklogEvery time.Duration
}

const (
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 2 * time.Second
	DefaultClaimIdle    = 5 * time.Minute
	defaultClaimEvery   = 10 * time.Second
	defaultBacklogEvery = 5 * time.Second
)

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Consumer == "" {
		c.Consumer = NewConsumerID()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = DefaultClaimIdle
	}
	if c.ClaimEvery == 0 {
		c.ClaimEvery = defaultClaimEvery
	}
	if c.BacklogEvery == 0 {
		c.BacklogEvery = defaultBacklogEvery
	}
	return c
}

// interval gates a periodic task inside the read loop.
type interval struct {
	every time.Duration
	last  time.Time
}

func (iv *interval) due(now time.Time) bool {
	if iv.every < 0 || (!iv.last.IsZero() && now.Sub(iv.last) < iv.every) {
		return false
	}
	iv.last = now
	return true
}

// Worker consumes completion jobs from the Redis stream. Every entry it
// reads ends acked: run to success, recorded as failed, or dead-lettered.
// Only an aborted shutdown leaves entries pending for another consumer.
type Worker struct {
	cfg     WorkerConfig
	stream  *jobStream
	runner  JobRunner
	logger  *slog.Logger
	metrics metrics.Recorder

	claim   interval
	backlog interval

	mu       sync.Mutex
	started  bool
	draining bool
	stopRead context.CancelFunc
	abort    context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a worker reading the completion stream through client.
func NewWorker(client *redis.Client, runner JobRunner, logger *slog.Logger, recorder metrics.Recorder, cfg WorkerConfig) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		cfg:     cfg,
		stream:  newJobStream(client, cfg.Consumer),
		runner:  runner,
		logger:  logger.With("component", "completion.worker", "consumer_id", cfg.Consumer),
		metrics: recorder,
		claim:   interval{every: cfg.ClaimEvery},
		backlog: interval{every: cfg.BacklogEvery},
	}
}

// Run consumes jobs until ctx is cancelled or Shutdown has drained the
// worker. A worker runs at most once.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("completion worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	// Reads stop on drain; jobs keep running until abort.
	ctx, w.abort = context.WithCancel(ctx)
	readCtx, stopRead := context.WithCancel(ctx)
	w.stopRead = stopRead
	w.mu.Unlock()

	defer close(w.done)
	defer stopRead()

	if err := w.stream.ensureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	w.logger.Info("completion worker started")

	for ctx.Err() == nil && !w.isDraining() {
		batch, err := w.fetch(readCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("read completion stream", "error", err)
				sleepCtx(ctx, time.Second)
			}
			continue
		}
		for _, msg := range batch {
			w.handle(ctx, msg)
		}
	}

	w.logger.Info("completion worker stopped")
	return nil
}

// Shutdown stops reading and waits for the current batch. If ctx expires
// first, running jobs are cancelled and left pending. It has the
// server.ShutdownFunc signature.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	stopRead, abort, done := w.stopRead, w.abort, w.done
	w.mu.Unlock()

	stopRead()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("completion worker drain timed out, aborting running jobs")
		abort()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) isDraining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draining
}

// fetch prefers reclaimed entries over new ones.
func (w *Worker) fetch(ctx context.Context) ([]redis.XMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	if w.backlog.due(now) {
		if n, err := w.stream.backlog(ctx); err != nil && !errors.Is(err, redis.Nil) {
			w.logger.Warn("read stream backlog", "error", err)
		} else {
			w.metrics.SetCompletionQueueDepth(n)
		}
	}
	if w.claim.due(now) {
		msgs, err := w.stream.reclaim(ctx, w.cfg.ClaimIdle, w.cfg.BatchSize)
		if err != nil {
			w.logger.Warn("reclaim pending completion jobs", "error", err)
		} else if len(msgs) > 0 {
			return msgs, nil
		}
	}
	return w.stream.next(ctx, w.cfg.BatchSize, w.cfg.BlockTimeout)
}

func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	payload, bad := decodeEntry(msg)
	if bad != nil {
		w.logger.Warn("dead-lettering completion entry",
			"message_id", msg.ID, "reason", bad.reason, "detail", bad.detail)
		if err := w.stream.deadLetter(ctx, msg, bad); err != nil {
			w.logger.Error("write dead-letter entry", "message_id", msg.ID, "error", err)
		}
		w.metrics.IncCompletionJob("dead_lettered")
		w.ack(ctx, msg.ID)
		return
	}

	logger := w.logger.With("job_id", payload.JobID, "message_id", msg.ID)
	start := time.Now()
	err := w.attempt(ctx, payload, logger)
	if ctx.Err() != nil {
		logger.Warn("completion job interrupted, leaving pending")
		return
	}

	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
		logger.Error("completion job failed", "error", err)
		if ferr := w.runner.Fail(ctx, payload, err); ferr != nil {
			logger.Error("record completion failure", "error", ferr)
		}
	}
	w.metrics.IncCompletionJob(outcome)
	w.metrics.ObserveCompletionDuration(time.Since(start))
	w.ack(ctx, msg.ID)
}

// attempt runs payload once plus up to MaxRetries retries with doubling
// backoff. Permanent errors are not retried.
func (w *Worker) attempt(ctx context.Context, payload JobPayload, logger *slog.Logger) error {
	backoff := w.cfg.RetryBackoff
	retries := max(w.cfg.MaxRetries, 0)
	for n := 1; ; n++ {
		err := w.runner.Run(ctx, payload)
		if err == nil || IsPermanent(err) || ctx.Err() != nil || n > retries {
			return err
		}

		logger.Warn("completion attempt failed, retrying",
			"attempt", n, "backoff_seconds", backoff.Seconds(), "error", err)
		w.metrics.IncCompletionJob("retried")
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.stream.ack(ctx, id); err != nil {
		w.logger.Error("xack failed", "message_id", id, "error", err)
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
