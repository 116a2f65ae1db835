package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aiiabox/aiiabox/internal/llm"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const maxMessageContentLength = 5000

// MessageStore is the persistence used by MessageService.
type MessageStore interface {
	GetChat(ctx context.Context, userID, id string) (*model.Chat, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, chatID, id string) (*model.Message, error)
	ListMessages(ctx context.Context, chatID string, page repository.Page) ([]*model.Message, int64, error)
	UpdateMessage(ctx context.Context, msg *model.Message) error
	DeleteMessage(ctx context.Context, chatID, id string) error
}

// MessageService handles messages nested under a chat. Each call first
// checks that the chat belongs to the caller.
type MessageService struct {
	store   MessageStore
	metrics metrics.Recorder
}

// NewMessageService creates a new MessageService.
func NewMessageService(store MessageStore, recorder metrics.Recorder) *MessageService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &MessageService{store: store, metrics: recorder}
}

// MessageInput defines the writable message fields. Nil fields are
// required on create and left unchanged on update.
type MessageInput struct {
	Content *string
	Role    *string
}

// CreateMessage adds a message from userID to one of their chats.
func (s *MessageService) CreateMessage(ctx context.Context, userID, chatID string, input MessageInput) (*model.Message, error) {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	content, role := "", model.Role("")
	if input.Content == nil {
		errs.add("content", msgRequired)
	} else {
		content = cleanText(errs, "content", *input.Content, maxMessageContentLength, true)
	}
	if input.Role == nil {
		errs.add("role", msgRequired)
	} else {
		role = validateRole(errs, *input.Role)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:        newID(),
		ChatID:    chatID,
		UserID:    userID,
		Content:   content,
		Role:      role,
		Tokens:    llm.EstimateTokens(content),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.metrics.IncMessageCreated(string(role))
	return msg, nil
}

// GetMessage returns a message of one of userID's chats.
func (s *MessageService) GetMessage(ctx context.Context, userID, chatID, id string) (*model.Message, error) {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}
	return s.getMessage(ctx, chatID, id)
}

// ListMessages returns a chat's messages, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, userID, chatID string, params ListParams) (*ListResult[*model.Message], error) {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}
	msgs, total, err := s.store.ListMessages(ctx, chatID, params.repoPage())
	if err != nil {
		return nil, err
	}
	return pageResult(params, msgs, total)
}

// UpdateMessage applies a partial update. Tokens are recomputed when the
// content changes.
func (s *MessageService) UpdateMessage(ctx context.Context, userID, chatID, id string, input MessageInput) (*model.Message, error) {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return nil, err
	}
	msg, err := s.getMessage(ctx, chatID, id)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if input.Content != nil {
		msg.Content = cleanText(errs, "content", *input.Content, maxMessageContentLength, true)
		msg.Tokens = llm.EstimateTokens(msg.Content)
	}
	if input.Role != nil {
		msg.Role = validateRole(errs, *input.Role)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return msg, nil
}

// DeleteMessage removes a message from one of userID's chats.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, chatID, id string) error {
	if _, err := getOwnedChat(ctx, s.store, userID, chatID); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, chatID, id); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	return nil
}

func (s *MessageService) getMessage(ctx context.Context, chatID, id string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, chatID, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func validateRole(errs fieldErrors, raw string) model.Role {
	role := model.Role(strings.TrimSpace(raw))
	if !role.IsValid() {
		errs.addf("role", msgInvalidChoice, raw)
	}
	return role
}
