package model

import "time"

// CompletionStatus tracks the lifecycle of an async completion job.
type CompletionStatus string

const (
	CompletionQueued    CompletionStatus = "queued"
	CompletionRunning   CompletionStatus = "running"
	CompletionSucceeded CompletionStatus = "succeeded"
	CompletionFailed    CompletionStatus = "failed"
)

// IsTerminal reports whether the job will not change state again.
func (s CompletionStatus) IsTerminal() bool {
	return s == CompletionSucceeded || s == CompletionFailed
}

// CompletionJob asks the LLM to append an assistant reply to a chat.
type CompletionJob struct {
	ID        string           `json:"id"`
	ChatID    string           `json:"chat_id"`
	UserID    string           `json:"user_id"`
	Status    CompletionStatus `json:"status"`
	Model     string           `json:"model"`
	Error     string           `json:"error,omitempty"`
	MessageID *string          `json:"message_id,omitempty"`
	Attempts  int              `json:"attempts"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
