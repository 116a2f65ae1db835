package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
)

const userColumns = `id, username, email, password_hash, is_staff, is_active, created_at, updated_at`

// CreateUserWithDefaults inserts a user together with its profile, settings
// and first API token in a single transaction.
func (r *Repository) CreateUserWithDefaults(ctx context.Context, user *model.User, token *model.Token) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, email, password_hash, is_staff, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, user.ID, user.Username, user.Email, user.PasswordHash, user.IsStaff, user.IsActive, user.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrUsernameExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		user.UpdatedAt = user.CreatedAt

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (user_id, created_at, updated_at) VALUES ($1, $2, $2)
		`, user.ID, user.CreatedAt); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_settings (user_id, created_at, updated_at) VALUES ($1, $2, $2)
		`, user.ID, user.CreatedAt); err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}

		return insertToken(ctx, tx, token)
	})
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsStaff,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
