package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aiiabox/aiiabox/internal/completion"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const maxModelNameLength = 100

// CompletionStore is the persistence used by CompletionService.
type CompletionStore interface {
	GetChat(ctx context.Context, userID, id string) (*model.Chat, error)
	GetSettings(ctx context.Context, userID string) (*model.UserSettings, error)
	CreateCompletionJob(ctx context.Context, job *model.CompletionJob) error
	GetChatCompletionJob(ctx context.Context, chatID, id string) (*model.CompletionJob, error)
	FailCompletionJob(ctx context.Context, id, reason string) error
}

// JobPublisher enqueues completion jobs for the worker.
type JobPublisher interface {
	Publish(ctx context.Context, payload completion.JobPayload) (string, error)
}

// CompletionService queues assistant replies for chats.
type CompletionService struct {
	store     CompletionStore
	publisher JobPublisher
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewCompletionService creates a new CompletionService. A nil publisher
// disables completions.
func NewCompletionService(store CompletionStore, publisher JobPublisher, recorder metrics.Recorder, logger *slog.Logger) *CompletionService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CompletionService{
		store:     store,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With("component", "service.completion"),
	}
}

// Enabled reports whether completions can be requested.
func (s *CompletionService) Enabled() bool {
	return s.publisher != nil
}

// RequestCompletion queues a job that appends an assistant reply to the
// chat. An empty modelName uses the user's preferred model.
func (s *CompletionService) RequestCompletion(ctx context.Context, userID, chatID, modelName string) (*model.CompletionJob, error) {
	if !s.Enabled() {
		return nil, ErrLLMDisabled
	}
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}

	modelName = strings.TrimSpace(modelName)
	if len(modelName) > maxModelNameLength {
		return nil, NewValidationError("model", fmt.Sprintf(msgMaxLength, maxModelNameLength))
	}
	if modelName == "" {
		if settings, err := s.store.GetSettings(ctx, userID); err == nil {
			modelName = settings.EffectiveLLM().Model
		} else {
			modelName = (&model.UserSettings{}).EffectiveLLM().Model
		}
	}

	now := time.Now().UTC()
	job := &model.CompletionJob{
		ID:        newID(),
		ChatID:    chatID,
		UserID:    userID,
		Status:    model.CompletionQueued,
		Model:     modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCompletionJob(ctx, job); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("create completion job: %w", err)
	}

	_, err := s.publisher.Publish(ctx, completion.JobPayload{
		JobID:      job.ID,
		ChatID:     chatID,
		UserID:     userID,
		EnqueuedAt: now.UnixMilli(),
	})
	if err != nil {
		if ferr := s.store.FailCompletionJob(ctx, job.ID, "enqueue failed"); ferr != nil {
			s.logger.Error("failed to mark unqueued job failed", "job_id", job.ID, "error", ferr)
		}
		return nil, fmt.Errorf("enqueue completion job: %w", err)
	}

	s.metrics.IncCompletionJob(string(model.CompletionQueued))
	return job, nil
}

// GetCompletion returns a job of one of userID's chats.
func (s *CompletionService) GetCompletion(ctx context.Context, userID, chatID, id string) (*model.CompletionJob, error) {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}
	job, err := s.store.GetChatCompletionJob(ctx, chatID, id)
	if err != nil {
		if errors.Is(err, repository.ErrCompletionJobNotFound) {
			return nil, ErrCompletionJobNotFound
		}
		return nil, err
	}
	return job, nil
}
