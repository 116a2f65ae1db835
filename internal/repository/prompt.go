package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Common errors for prompt template repository operations.
var (
	ErrPromptNotFound   = errors.New("prompt template not found")
	ErrPromptNameExists = errors.New("prompt template name already exists")
)

const promptColumns = `id, user_id, name, description, content, tags, created_at, updated_at`

// PromptFilter narrows a prompt template listing.
type PromptFilter struct {
	Tag    string // case-insensitive exact tag match
	Search string // case-insensitive substring of name
}

// CreatePrompt inserts a new prompt template.
func (r *Repository) CreatePrompt(ctx context.Context, p *model.PromptTemplate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO prompt_templates (id, user_id, name, description, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, p.ID, p.UserID, p.Name, p.Description, p.Content, pq.Array(nonNilTags(p.Tags)), p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPromptNameExists
		}
		return fmt.Errorf("failed to create prompt template: %w", err)
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

// GetPrompt retrieves a prompt template owned by userID.
func (r *Repository) GetPrompt(ctx context.Context, userID, id string) (*model.PromptTemplate, error) {
	query := `SELECT ` + promptColumns + ` FROM prompt_templates WHERE id = $1 AND user_id = $2`
	p, err := scanPrompt(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to get prompt template: %w", err)
	}
	return p, nil
}

// ListPrompts returns a page of the user's prompt templates ordered by name.
func (r *Repository) ListPrompts(ctx context.Context, userID string, filter PromptFilter, page Page) ([]*model.PromptTemplate, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		args = append(args, tag)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(tags) t WHERE LOWER(t) = LOWER($%d))", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, search)
		where = append(where, fmt.Sprintf("STRPOS(LOWER(name), LOWER($%d)) > 0", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM prompt_templates WHERE `+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prompt templates: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM prompt_templates
		WHERE %s
		ORDER BY name ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, promptColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prompt templates: %w", err)
	}
	defer rows.Close()

	prompts := make([]*model.PromptTemplate, 0, page.Limit)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prompt template: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating prompt templates: %w", err)
	}
	return prompts, total, nil
}

// UpdatePrompt stores all mutable template fields.
func (r *Repository) UpdatePrompt(ctx context.Context, p *model.PromptTemplate) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE prompt_templates
		SET name = $3, description = $4, content = $5, tags = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`, p.ID, p.UserID, p.Name, p.Description, p.Content, pq.Array(nonNilTags(p.Tags))).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPromptNotFound
		}
		if isUniqueViolation(err) {
			return ErrPromptNameExists
		}
		return fmt.Errorf("failed to update prompt template: %w", err)
	}
	return nil
}

// DeletePrompt removes a prompt template.
func (r *Repository) DeletePrompt(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM prompt_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete prompt template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPromptNotFound
	}
	return nil
}

func scanPrompt(row pgx.Row) (*model.PromptTemplate, error) {
	var p model.PromptTemplate
	var tags []string
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.Content,
		pq.Array(&tags),
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Tags = nonNilTags(tags)
	return &p, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
