package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/aiiabox/aiiabox/internal/llm"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const (
	// DefaultContextMessages is how many recent messages are loaded per job.
	DefaultContextMessages = 50
	// DefaultContextTokens caps the estimated size of the history sent.
	DefaultContextTokens = 6000

	maxErrorLength = 500
)

// Store is the persistence the runner needs.
type Store interface {
	MarkCompletionRunning(ctx context.Context, id string) (*model.CompletionJob, error)
	// CompleteCompletionJob stores reply and marks the job succeeded
	// atomically. It returns ErrCompletionJobNotFound once the job has left
	// the running state.
	CompleteCompletionJob(ctx context.Context, id string, reply *model.Message) error
	FailCompletionJob(ctx context.Context, id, reason string) error
	RecentMessages(ctx context.Context, chatID string, limit int) ([]*model.Message, error)
	GetSettings(ctx context.Context, userID string) (*model.UserSettings, error)
}

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, opts model.LLMOptions, history []*model.Message) (*llm.Completion, error)
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RunnerConfig bounds the history sent with each job. Zero values use the
// package defaults.
type RunnerConfig struct {
	ContextMessages int
	ContextTokens   int
}

// Runner executes a single completion job.
type Runner struct {
	store  Store
	llm    Completer
	logger *slog.Logger
	cfg    RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(store Store, completer Completer, logger *slog.Logger, cfg RunnerConfig) *Runner {
	if cfg.ContextMessages <= 0 {
		cfg.ContextMessages = DefaultContextMessages
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = DefaultContextTokens
	}
	return &Runner{
		store:  store,
		llm:    completer,
		logger: logger.With("component", "completion.runner"),
		cfg:    cfg,
	}
}

// Run generates the assistant reply for the job and stores it.
// A job that is already finished or gone is skipped without error.
func (r *Runner) Run(ctx context.Context, p JobPayload) error {
	job, err := r.store.MarkCompletionRunning(ctx, p.JobID)
	if errors.Is(err, repository.ErrCompletionJobNotFound) {
		r.logger.Info("skipping finished or missing job", "job_id", p.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	history, err := r.store.RecentMessages(ctx, job.ChatID, r.cfg.ContextMessages)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		return Permanent(errors.New("chat has no messages to complete"))
	}
	history = trimHistory(history, r.cfg.ContextTokens)

	opts := r.options(ctx, job)

	start := time.Now()
	reply, err := r.llm.Complete(ctx, opts, history)
	if err != nil {
		if !llm.IsRetryable(err) {
			return Permanent(err)
		}
		return err
	}

	tokens := reply.CompletionTokens
	if tokens <= 0 {
		tokens = llm.EstimateTokens(reply.Content)
	}

	msg := &model.Message{
		ID:        ulid.Make().String(),
		ChatID:    job.ChatID,
		UserID:    job.UserID,
		Content:   reply.Content,
		Role:      model.RoleAssistant,
		Tokens:    tokens,
		CreatedAt: time.Now().UTC(),
	}
	err = r.store.CompleteCompletionJob(ctx, job.ID, msg)
	switch {
	case errors.Is(err, repository.ErrCompletionJobNotFound):
		r.logger.Info("job finished elsewhere, reply discarded", "job_id", job.ID)
		return nil
	case errors.Is(err, repository.ErrChatNotFound):
		return Permanent(err)
	case err != nil:
		return fmt.Errorf("store reply: %w", err)
	}

	r.logger.Info("completion stored",
		"job_id", job.ID,
		"chat_id", job.ChatID,
		"model", opts.Model,
		"tokens", tokens,
		"llm_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Fail records the final error on the job.
func (r *Runner) Fail(ctx context.Context, p JobPayload, cause error) error {
	reason := truncateUTF8(cause.Error(), maxErrorLength)
	err := r.store.FailCompletionJob(ctx, p.JobID, reason)
	if errors.Is(err, repository.ErrCompletionJobNotFound) {
		return nil
	}
	return err
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
// Invalid sequences are replaced so the result is always valid UTF-8.
func truncateUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// trimHistory drops the oldest messages until the estimated token count
// fits budget. The newest message is always kept.
func trimHistory(history []*model.Message, budget int) []*model.Message {
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		total += llm.EstimateTokens(history[i].Content)
		if total > budget && i < len(history)-1 {
			return history[i+1:]
		}
	}
	return history
}

// options resolves generation parameters from the user's settings, with
// the model requested on the job taking precedence.
func (r *Runner) options(ctx context.Context, job *model.CompletionJob) model.LLMOptions {
	settings, err := r.store.GetSettings(ctx, job.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingsNotFound) {
			r.logger.Warn("failed to load settings, using defaults", "user_id", job.UserID, "error", err)
		}
		settings = &model.UserSettings{}
	}
	opts := settings.EffectiveLLM()
	if job.Model != "" {
		opts.Model = job.Model
	}
	return opts
}
