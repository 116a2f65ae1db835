package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const (
	maxPromptNameLength = 200
	maxPromptTags       = 20
	maxTagLength        = 50
)

// PromptStore is the persistence used by PromptService.
type PromptStore interface {
	CreatePrompt(ctx context.Context, p *model.PromptTemplate) error
	GetPrompt(ctx context.Context, userID, id string) (*model.PromptTemplate, error)
	ListPrompts(ctx context.Context, userID string, filter repository.PromptFilter, page repository.Page) ([]*model.PromptTemplate, int64, error)
	UpdatePrompt(ctx context.Context, p *model.PromptTemplate) error
	DeletePrompt(ctx context.Context, userID, id string) error
}

// PromptService manages reusable prompt templates.
type PromptService struct {
	store PromptStore
}

// NewPromptService creates a new PromptService.
func NewPromptService(store PromptStore) *PromptService {
	return &PromptService{store: store}
}

// PromptInput defines writable template fields. Name and Content are
// required on create.
type PromptInput struct {
	Name        *string
	Description *string
	Content     *string
	Tags        []string
}

// PromptFilter narrows a listing by tag and name substring.
type PromptFilter struct {
	Tag    string
	Search string
}

// CreatePrompt creates a template owned by userID.
func (s *PromptService) CreatePrompt(ctx context.Context, userID string, input PromptInput) (*model.PromptTemplate, error) {
	p := &model.PromptTemplate{UserID: userID, Tags: []string{}}

	errs := fieldErrors{}
	if input.Name == nil {
		errs.add("name", msgRequired)
	}
	if input.Content == nil {
		errs.add("content", msgRequired)
	}
	applyPromptInput(errs, p, input)
	if err := errs.err(); err != nil {
		return nil, err
	}

	p.ID = newID()
	p.CreatedAt = time.Now().UTC()
	if err := s.store.CreatePrompt(ctx, p); err != nil {
		if errors.Is(err, repository.ErrPromptNameExists) {
			return nil, NewValidationError("name", "You already have a prompt template with this name.")
		}
		return nil, fmt.Errorf("create prompt template: %w", err)
	}
	return p, nil
}

// GetPrompt returns a template owned by userID.
func (s *PromptService) GetPrompt(ctx context.Context, userID, id string) (*model.PromptTemplate, error) {
	p, err := s.store.GetPrompt(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPrompts returns the user's templates ordered by name.
func (s *PromptService) ListPrompts(ctx context.Context, userID string, filter PromptFilter, params ListParams) (*ListResult[*model.PromptTemplate], error) {
	repoFilter := repository.PromptFilter{
		Tag:    strings.TrimSpace(filter.Tag),
		Search: strings.TrimSpace(filter.Search),
	}
	prompts, total, err := s.store.ListPrompts(ctx, userID, repoFilter, params.repoPage())
	if err != nil {
		return nil, err
	}
	return pageResult(params, prompts, total)
}

// UpdatePrompt applies a partial update. Tags, when given, replace the
// existing set.
func (s *PromptService) UpdatePrompt(ctx context.Context, userID, id string, input PromptInput) (*model.PromptTemplate, error) {
	p, err := s.GetPrompt(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	applyPromptInput(errs, p, input)
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdatePrompt(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrPromptNotFound):
			return nil, ErrPromptNotFound
		case errors.Is(err, repository.ErrPromptNameExists):
			return nil, NewValidationError("name", "You already have a prompt template with this name.")
		}
		return nil, fmt.Errorf("update prompt template: %w", err)
	}
	return p, nil
}

// DeletePrompt deletes a template owned by userID.
func (s *PromptService) DeletePrompt(ctx context.Context, userID, id string) error {
	if err := s.store.DeletePrompt(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			return ErrPromptNotFound
		}
		return err
	}
	return nil
}

// RenderPrompt fills the template's placeholders with values.
func (s *PromptService) RenderPrompt(ctx context.Context, userID, id string, values map[string]string) (string, error) {
	p, err := s.GetPrompt(ctx, userID, id)
	if err != nil {
		return "", err
	}
	out, missing := p.Render(values)
	if len(missing) > 0 {
		return "", NewValidationError("variables", "Missing values for: "+strings.Join(missing, ", ")+".")
	}
	return out, nil
}

func applyPromptInput(errs fieldErrors, p *model.PromptTemplate, input PromptInput) {
	if input.Name != nil {
		p.Name = cleanText(errs, "name", *input.Name, maxPromptNameLength, true)
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			errs.add("content", msgBlank)
		}
		p.Content = *input.Content
	}
	if input.Tags != nil {
		p.Tags = cleanTags(errs, input.Tags)
	}
}

// cleanTags trims tags and drops case-insensitive duplicates.
func cleanTags(errs fieldErrors, tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			errs.add("tags", msgBlank)
			continue
		}
		if utf8.RuneCountInString(tag) > maxTagLength {
			errs.addf("tags", msgMaxLength, maxTagLength)
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > maxPromptTags {
		errs.addf("tags", "Ensure this field has no more than %d elements.", maxPromptTags)
	}
	return out
}
