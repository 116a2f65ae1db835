package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for project repository operations.
var (
	ErrProjectNotFound = errors.New("project not found")
)

const projectColumns = `id, user_id, name, description, created_at, updated_at`

// CreateProject inserts a new project.
func (r *Repository) CreateProject(ctx context.Context, p *model.Project) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, p.ID, p.UserID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

// GetProject retrieves a project owned by userID.
func (r *Repository) GetProject(ctx context.Context, userID, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND user_id = $2`
	p, err := scanProject(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns a page of the user's projects ordered by name.
func (r *Repository) ListProjects(ctx context.Context, userID string, page Page) ([]*model.Project, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*model.Project, 0, page.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, total, nil
}

// UpdateProject stores name and description.
func (r *Repository) UpdateProject(ctx context.Context, p *model.Project) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE projects SET name = $3, description = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`, p.ID, p.UserID, p.Name, p.Description).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// DeleteProject removes a project. Chats and settings referencing it are
// detached by the foreign keys.
func (r *Repository) DeleteProject(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
