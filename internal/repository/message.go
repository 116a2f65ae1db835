package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for message repository operations.
var (
	ErrMessageNotFound = errors.New("message not found")
)

const messageColumns = `id, chat_id, user_id, content, role, tokens, created_at`

// CreateMessage inserts a message and bumps the parent chat's updated_at.
func (r *Repository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		return insertMessage(ctx, tx, msg)
	})
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *model.Message) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, user_id, content, role, tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.ChatID, msg.UserID, msg.Content, string(msg.Role), msg.Tokens, msg.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chats SET updated_at = $2 WHERE id = $1`, msg.ChatID, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

// GetMessage retrieves a message that belongs to chatID.
func (r *Repository) GetMessage(ctx context.Context, chatID, id string) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND chat_id = $2`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a page of a chat's messages, oldest first.
func (r *Repository) ListMessages(ctx context.Context, chatID string, page Page) ([]*model.Message, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, chatID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// RecentMessages returns up to limit of the newest messages in a chat,
// ordered oldest first.
func (r *Repository) RecentMessages(ctx context.Context, chatID string, limit int) ([]*model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE chat_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return collectMessages(rows)
}

// UpdateMessage stores content, role and token count.
func (r *Repository) UpdateMessage(ctx context.Context, msg *model.Message) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE messages SET content = $3, role = $4, tokens = $5
		WHERE id = $1 AND chat_id = $2
	`, msg.ID, msg.ChatID, msg.Content, string(msg.Role), msg.Tokens)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteMessage removes a message from a chat.
func (r *Repository) DeleteMessage(ctx context.Context, chatID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND chat_id = $2`, id, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]*model.Message, error) {
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var role string
	if err := row.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Content, &role, &m.Tokens, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	return &m, nil
}
