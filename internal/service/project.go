package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const maxProjectNameLength = 255

// ProjectStore is the persistence used by ProjectService.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string, page repository.Page) ([]*model.Project, int64, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, userID, id string) error
}

// ProjectService handles the user's projects.
type ProjectService struct {
	store ProjectStore
}

// NewProjectService creates a new ProjectService.
func NewProjectService(store ProjectStore) *ProjectService {
	return &ProjectService{store: store}
}

// ProjectInput defines writable project fields. Name is required on create.
type ProjectInput struct {
	Name        *string
	Description *string
}

// CreateProject creates a project owned by userID.
func (s *ProjectService) CreateProject(ctx context.Context, userID string, input ProjectInput) (*model.Project, error) {
	errs := fieldErrors{}
	var name, description string
	if input.Name == nil {
		errs.add("name", msgRequired)
	} else {
		name = cleanText(errs, "name", *input.Name, maxProjectNameLength, true)
	}
	if input.Description != nil {
		description = *input.Description
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Project{
		ID:          newID(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProject returns a project owned by userID.
func (s *ProjectService) GetProject(ctx context.Context, userID, id string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListProjects returns the user's projects ordered by name.
func (s *ProjectService) ListProjects(ctx context.Context, userID string, params ListParams) (*ListResult[*model.Project], error) {
	projects, total, err := s.store.ListProjects(ctx, userID, params.repoPage())
	if err != nil {
		return nil, err
	}
	return pageResult(params, projects, total)
}

// UpdateProject applies a partial update.
func (s *ProjectService) UpdateProject(ctx context.Context, userID, id string, input ProjectInput) (*model.Project, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if input.Name != nil {
		p.Name = cleanText(errs, "name", *input.Name, maxProjectNameLength, true)
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// DeleteProject deletes a project. Chats and settings pointing at it are
// detached, not deleted.
func (s *ProjectService) DeleteProject(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteProject(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}
