package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for completion job repository operations.
var (
	ErrCompletionJobNotFound = errors.New("completion job not found")
)

const completionColumns = `id, chat_id, user_id, status, model, error, message_id, attempts, created_at, updated_at`

// CreateCompletionJob inserts a queued completion job.
func (r *Repository) CreateCompletionJob(ctx context.Context, job *model.CompletionJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO completion_jobs (id, chat_id, user_id, status, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, job.ID, job.ChatID, job.UserID, string(job.Status), job.Model, job.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to create completion job: %w", err)
	}
	job.UpdatedAt = job.CreatedAt
	return nil
}

// GetCompletionJob retrieves a job by ID.
func (r *Repository) GetCompletionJob(ctx context.Context, id string) (*model.CompletionJob, error) {
	query := `SELECT ` + completionColumns + ` FROM completion_jobs WHERE id = $1`
	return scanCompletionJob(r.pool.QueryRow(ctx, query, id))
}

// GetChatCompletionJob retrieves a job that belongs to chatID.
func (r *Repository) GetChatCompletionJob(ctx context.Context, chatID, id string) (*model.CompletionJob, error) {
	query := `SELECT ` + completionColumns + ` FROM completion_jobs WHERE id = $1 AND chat_id = $2`
	return scanCompletionJob(r.pool.QueryRow(ctx, query, id, chatID))
}

// MarkCompletionRunning moves a non-terminal job to running and counts the attempt.
func (r *Repository) MarkCompletionRunning(ctx context.Context, id string) (*model.CompletionJob, error) {
	query := `
		UPDATE completion_jobs
		SET status = 'running', attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'running')
		RETURNING ` + completionColumns
	return scanCompletionJob(r.pool.QueryRow(ctx, query, id))
}

// CompleteCompletionJob stores reply and marks the running job succeeded in
// one transaction. A job that is no longer running returns
// ErrCompletionJobNotFound and nothing is written.
func (r *Repository) CompleteCompletionJob(ctx context.Context, id string, reply *model.Message) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertMessage(ctx, tx, reply); err != nil {
			return err
		}
		result, err := tx.Exec(ctx, `
			UPDATE completion_jobs SET status = $2, error = '', message_id = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'running'
		`, id, string(model.CompletionSucceeded), reply.ID)
		if err != nil {
			return fmt.Errorf("failed to finish completion job: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrCompletionJobNotFound
		}
		return nil
	})
}

// FailCompletionJob marks a job failed with a reason.
func (r *Repository) FailCompletionJob(ctx context.Context, id, reason string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE completion_jobs SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, string(model.CompletionFailed), reason)
	if err != nil {
		return fmt.Errorf("failed to finish completion job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCompletionJobNotFound
	}
	return nil
}

func scanCompletionJob(row pgx.Row) (*model.CompletionJob, error) {
	var j model.CompletionJob
	var status string
	err := row.Scan(
		&j.ID,
		&j.ChatID,
		&j.UserID,
		&status,
		&j.Model,
		&j.Error,
		&j.MessageID,
		&j.Attempts,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompletionJobNotFound
		}
		return nil, fmt.Errorf("failed to scan completion job: %w", err)
	}
	j.Status = model.CompletionStatus(status)
	return &j, nil
}
