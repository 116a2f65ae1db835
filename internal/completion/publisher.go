package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for completion jobs.
	StreamKey = "stream:completion_jobs"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:completion_jobs:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds a single enqueue.
	PublishTimeout = 2 * time.Second
)

// Publisher enqueues completion jobs to the Redis stream.
type Publisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a new completion job publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "completion.publisher"),
	}
}

// Publish adds a job to the stream and returns the stream entry ID.
func (p *Publisher) Publish(ctx context.Context, payload JobPayload) (string, error) {
	if payload.EnqueuedAt == 0 {
		payload.EnqueuedAt = time.Now().UnixMilli()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	streamID, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("completion job published",
		"job_id", payload.JobID,
		"stream_id", streamID,
	)
	return streamID, nil
}
