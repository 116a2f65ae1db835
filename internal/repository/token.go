package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for token repository operations.
var (
	ErrTokenNotFound = errors.New("token not found")
)

const tokenColumns = `t.id, t.user_id, t.key_prefix, t.key_hash, t.rate_limit_tier, t.last_used_at, t.revoked_at, t.created_at`

func insertToken(ctx context.Context, q querier, token *model.Token) error {
	_, err := q.Exec(ctx, `
		INSERT INTO auth_tokens (id, user_id, key_prefix, key_hash, rate_limit_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, token.UserID, token.KeyPrefix, token.KeyHash, token.RateLimitTier, token.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// ReplaceActiveToken revokes the user's active token (if any) and stores the
// new one atomically. It returns the IDs of the revoked tokens.
func (r *Repository) ReplaceActiveToken(ctx context.Context, token *model.Token) ([]string, error) {
	var revoked []string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE auth_tokens SET revoked_at = $2
			WHERE user_id = $1 AND revoked_at IS NULL
			RETURNING id
		`, token.UserID, token.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to revoke tokens: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to collect revoked tokens: %w", err)
		}
		revoked = ids

		return insertToken(ctx, tx, token)
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// GetActiveTokenByUserID returns the user's non-revoked token.
func (r *Repository) GetActiveTokenByUserID(ctx context.Context, userID string) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens t WHERE t.user_id = $1 AND t.revoked_at IS NULL`
	return scanToken(r.pool.QueryRow(ctx, query, userID))
}

// GetTokensByPrefix retrieves active tokens of active users matching a prefix.
// Used during authentication to find candidates for hash verification.
func (r *Repository) GetTokensByPrefix(ctx context.Context, prefix string) ([]*model.TokenWithUser, error) {
	query := `
		SELECT ` + tokenColumns + `, u.username, u.is_staff, u.is_active, u.created_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.key_prefix = $1 AND t.revoked_at IS NULL AND u.is_active
	`
	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*model.TokenWithUser
	for rows.Next() {
		tw, err := scanTokenWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, tw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, nil
}

// ListActiveTokens returns a page of active tokens with their owners,
// newest first, and the total count.
func (r *Repository) ListActiveTokens(ctx context.Context, page Page) ([]*model.TokenWithUser, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM auth_tokens WHERE revoked_at IS NULL`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tokens: %w", err)
	}

	query := `
		SELECT ` + tokenColumns + `, u.username, u.is_staff, u.is_active, u.created_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.revoked_at IS NULL
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*model.TokenWithUser, 0, page.Limit)
	for rows.Next() {
		tw, err := scanTokenWithUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, tw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, total, nil
}

// RevokeActiveToken revokes the user's active token and returns its ID.
func (r *Repository) RevokeActiveToken(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		UPDATE auth_tokens SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
		RETURNING id
	`, userID, time.Now().UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to revoke token: %w", err)
	}
	return id, nil
}

// UpdateTokenLastUsed updates the last_used_at timestamp.
// Should be called asynchronously after successful authentication.
func (r *Repository) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE auth_tokens SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update token last used: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (*model.Token, error) {
	var t model.Token
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.KeyPrefix,
		&t.KeyHash,
		&t.RateLimitTier,
		&t.LastUsedAt,
		&t.RevokedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	return &t, nil
}

func scanTokenWithUser(row pgx.Row) (*model.TokenWithUser, error) {
	var tw model.TokenWithUser
	err := row.Scan(
		&tw.ID,
		&tw.UserID,
		&tw.KeyPrefix,
		&tw.KeyHash,
		&tw.RateLimitTier,
		&tw.LastUsedAt,
		&tw.RevokedAt,
		&tw.CreatedAt,
		&tw.Username,
		&tw.IsStaff,
		&tw.IsActive,
		&tw.UserJoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tw, nil
}
