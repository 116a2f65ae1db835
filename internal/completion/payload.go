package completion

import (
	"errors"
	"fmt"
)

const maxIDLength = 64

// JobPayload is the stream message that points a worker at a stored job.
type JobPayload struct {
	JobID      string `json:"jid"`
	ChatID     string `json:"cid"`
	UserID     string `json:"uid"`
	EnqueuedAt int64  `json:"t"` // Unix milliseconds
}

// ValidatePayload checks that a decoded payload can be processed.
func ValidatePayload(p JobPayload) error {
	if err := validateID("job_id", p.JobID); err != nil {
		return err
	}
	if err := validateID("chat_id", p.ChatID); err != nil {
		return err
	}
	if err := validateID("user_id", p.UserID); err != nil {
		return err
	}
	if p.EnqueuedAt <= 0 {
		return errors.New("enqueued_at must be set")
	}
	return nil
}

func validateID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(value) > maxIDLength {
		return fmt.Errorf("%s too long", field)
	}
	return nil
}
