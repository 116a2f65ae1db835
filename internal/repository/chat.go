package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for chat repository operations.
var (
	ErrChatNotFound = errors.New("chat not found")
)

const chatSelect = `
	SELECT c.id, c.user_id, c.project_id, c.title, c.metadata, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id) AS message_count
	FROM chats c`

// CreateChat inserts a new chat.
func (r *Repository) CreateChat(ctx context.Context, chat *model.Chat) error {
	metadata, err := json.Marshal(jsonObject(chat.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO chats (id, user_id, project_id, title, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, chat.ID, chat.UserID, chat.ProjectID, chat.Title, metadata, chat.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to create chat: %w", err)
	}
	chat.Metadata = jsonObject(chat.Metadata)
	chat.UpdatedAt = chat.CreatedAt
	return nil
}

// GetChat retrieves a chat owned by userID. Chats of other users are
// reported as not found.
func (r *Repository) GetChat(ctx context.Context, userID, id string) (*model.Chat, error) {
	chat, err := scanChat(r.pool.QueryRow(ctx, chatSelect+` WHERE c.id = $1 AND c.user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// ListChats returns a page of the user's chats, most recently updated first.
func (r *Repository) ListChats(ctx context.Context, userID string, page Page) ([]*model.Chat, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chats WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count chats: %w", err)
	}

	rows, err := r.pool.Query(ctx, chatSelect+`
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*model.Chat, 0, page.Limit)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating chats: %w", err)
	}
	return chats, total, nil
}

// UpdateChat stores title, project and metadata and bumps updated_at.
func (r *Repository) UpdateChat(ctx context.Context, chat *model.Chat) error {
	metadata, err := json.Marshal(jsonObject(chat.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE chats SET title = $3, project_id = $4, metadata = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`, chat.ID, chat.UserID, chat.Title, chat.ProjectID, metadata, time.Now().UTC()).Scan(&chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChatNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and, through the foreign key, its messages.
func (r *Repository) DeleteChat(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	var c model.Chat
	var metadata []byte
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.ProjectID,
		&c.Title,
		&metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.MessageCount,
	)
	if err != nil {
		return nil, err
	}
	if c.Metadata, err = decodeObject(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &c, nil
}
