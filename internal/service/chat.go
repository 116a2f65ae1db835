package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const maxChatTitleLength = 200

// Patch is a field of a partial update. Set is false when the client
// omitted the field; Value may then be ignored.
type Patch[T any] struct {
	Set   bool
	Value T
}

// Some returns a Patch that sets v.
func Some[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: v}
}

// ChatStore is the persistence used by ChatService.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, userID, id string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string, page repository.Page) ([]*model.Chat, int64, error)
	UpdateChat(ctx context.Context, chat *model.Chat) error
	DeleteChat(ctx context.Context, userID, id string) error
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
	GetSettings(ctx context.Context, userID string) (*model.UserSettings, error)
}

// ChatService handles chat business logic. Every operation is scoped to
// the calling user; other users' chats are reported as not found.
type ChatService struct {
	store   ChatStore
	metrics metrics.Recorder
}

// NewChatService creates a new ChatService.
func NewChatService(store ChatStore, recorder metrics.Recorder) *ChatService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ChatService{store: store, metrics: recorder}
}

// CreateChatInput defines input for creating a chat. An unset Project uses
// the user's default project.
type CreateChatInput struct {
	Title    *string
	Project  Patch[*string]
	Metadata map[string]any
}

// UpdateChatInput defines a partial chat update.
type UpdateChatInput struct {
	Title    *string
	Project  Patch[*string]
	Metadata map[string]any
}

// CreateChat creates a chat owned by userID.
func (s *ChatService) CreateChat(ctx context.Context, userID string, input CreateChatInput) (*model.Chat, error) {
	errs := fieldErrors{}

	var title string
	if input.Title == nil {
		errs.add("title", msgRequired)
	} else {
		title = cleanText(errs, "title", *input.Title, maxChatTitleLength, true)
	}

	project := input.Project
	if !project.Set {
		project = Some(s.defaultProject(ctx, userID))
	}
	projectID, err := resolveProject(ctx, s.store, errs, userID, project)
	if err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:        newID(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     title,
		Metadata:  nonNilObject(input.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateChat(ctx, chat); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, NewValidationError("project", fmt.Sprintf(msgDoesNotExist, *projectID))
		}
		return nil, fmt.Errorf("create chat: %w", err)
	}

	s.metrics.IncChatCreated()
	return chat, nil
}

// GetChat returns a chat owned by userID.
func (s *ChatService) GetChat(ctx context.Context, userID, id string) (*model.Chat, error) {
	return getOwnedChat(ctx, s.store, userID, id)
}

// ListChats returns the user's chats, most recently updated first.
func (s *ChatService) ListChats(ctx context.Context, userID string, params ListParams) (*ListResult[*model.Chat], error) {
	chats, total, err := s.store.ListChats(ctx, userID, params.repoPage())
	if err != nil {
		return nil, err
	}
	return pageResult(params, chats, total)
}

// UpdateChat applies a partial update to a chat owned by userID.
func (s *ChatService) UpdateChat(ctx context.Context, userID, id string, input UpdateChatInput) (*model.Chat, error) {
	chat, err := getOwnedChat(ctx, s.store, userID, id)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if input.Title != nil {
		chat.Title = cleanText(errs, "title", *input.Title, maxChatTitleLength, true)
	}
	if input.Project.Set {
		projectID, err := resolveProject(ctx, s.store, errs, userID, input.Project)
		if err != nil {
			return nil, err
		}
		chat.ProjectID = projectID
	}
	if input.Metadata != nil {
		chat.Metadata = input.Metadata
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateChat(ctx, chat); err != nil {
		switch {
		case errors.Is(err, repository.ErrChatNotFound):
			return nil, ErrChatNotFound
		case errors.Is(err, repository.ErrProjectNotFound):
			return nil, NewValidationError("project", fmt.Sprintf(msgDoesNotExist, *chat.ProjectID))
		}
		return nil, fmt.Errorf("update chat: %w", err)
	}
	return chat, nil
}

// DeleteChat deletes a chat owned by userID and its messages.
func (s *ChatService) DeleteChat(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteChat(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// defaultProject returns the user's default project id, or nil.
func (s *ChatService) defaultProject(ctx context.Context, userID string) *string {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil
	}
	return settings.DefaultProjectID
}

type chatGetter interface {
	GetChat(ctx context.Context, userID, id string) (*model.Chat, error)
}

func getOwnedChat(ctx context.Context, store chatGetter, userID, id string) (*model.Chat, error) {
	chat, err := store.GetChat(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}

type projectGetter interface {
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
}

// resolveProject checks that a requested project belongs to userID. An
// unknown or foreign project is recorded as a field error.
func resolveProject(ctx context.Context, store projectGetter, errs fieldErrors, userID string, p Patch[*string]) (*string, error) {
	return resolveProjectField(ctx, store, errs, "project", userID, p)
}

func resolveProjectField(ctx context.Context, store projectGetter, errs fieldErrors, field, userID string, p Patch[*string]) (*string, error) {
	if !p.Set || p.Value == nil || *p.Value == "" {
		return nil, nil
	}
	id := *p.Value
	if _, err := store.GetProject(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			errs.addf(field, msgDoesNotExist, id)
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

func nonNilObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
