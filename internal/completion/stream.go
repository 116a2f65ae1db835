// Package completion runs LLM completions for chats asynchronously over a
// Redis stream.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ConsumerGroup = "completion_workers"

	deadLetterMaxLen = 10000
)

// NewConsumerID names this process within the consumer group. It only
// needs to be unique among live workers.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// poison describes a stream entry that can never be processed.
type poison struct {
	reason string
	detail string
}

// decodeEntry extracts the job from a stream entry.
func decodeEntry(msg redis.XMessage) (JobPayload, *poison) {
	var p JobPayload
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return p, &poison{"invalid_format", "payload field missing or not a string"}
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, &poison{"unmarshal_error", err.Error()}
	}
	if err := ValidatePayload(p); err != nil {
		return p, &poison{"validation_error", err.Error()}
	}
	return p, nil
}

// jobStream is one consumer's view of the completion stream.
type jobStream struct {
	rdb      *redis.Client
	consumer string
	// claimCursor resumes XAUTOCLAIM where the last scan stopped.
	claimCursor string
}

func newJobStream(rdb *redis.Client, consumer string) *jobStream {
	return &jobStream{rdb: rdb, consumer: consumer, claimCursor: "0-0"}
}

// ensureGroup creates the stream and consumer group on first use.
func (s *jobStream) ensureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// next returns up to count new entries, waiting at most block.
func (s *jobStream) next(ctx context.Context, count int, block time.Duration) ([]redis.XMessage, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: s.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(res) == 0:
		return nil, nil
	}
	return res[0].Messages, nil
}

// reclaim takes over entries another consumer left pending for longer
// than idle.
func (s *jobStream) reclaim(ctx context.Context, idle time.Duration, count int) ([]redis.XMessage, error) {
	msgs, cursor, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: s.consumer,
		MinIdle:  idle,
		Start:    s.claimCursor,
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if cursor != "" {
		s.claimCursor = cursor
	}
	return msgs, nil
}

func (s *jobStream) ack(ctx context.Context, id string) error {
	return s.rdb.XAck(ctx, StreamKey, ConsumerGroup, id).Err()
}

// deadLetter copies msg to the dead-letter stream with the reason it was
// rejected. The caller still acks the original.
func (s *jobStream) deadLetter(ctx context.Context, msg redis.XMessage, p *poison) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           p.reason,
			"detail":           p.detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}

// backlog is the group's pending plus not-yet-delivered entry count.
func (s *jobStream) backlog(ctx context.Context) (int64, error) {
	groups, err := s.rdb.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		return 0, err
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			return g.Pending + g.Lag, nil
		}
	}
	return 0, nil
}
