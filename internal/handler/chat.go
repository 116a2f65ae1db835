package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/service"
)

// ChatService is the chat logic used by ChatHandler.
type ChatService interface {
	CreateChat(ctx context.Context, userID string, input service.CreateChatInput) (*model.Chat, error)
	GetChat(ctx context.Context, userID, id string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string, params service.ListParams) (*service.ListResult[*model.Chat], error)
	UpdateChat(ctx context.Context, userID, id string, input service.UpdateChatInput) (*model.Chat, error)
	DeleteChat(ctx context.Context, userID, id string) error
}

// ChatHandler handles HTTP requests for chats.
type ChatHandler struct {
	svc     ChatService
	baseURL string
	logger  *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc ChatService, baseURL string, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger.With("component", "handler.chat"),
	}
}

// List handles GET /api/chats/.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.ListChats(r.Context(), userID(r), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(h.baseURL, r, params, res, dto.ToChatResponse))
}

// Create handles POST /api/chats/.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chat, err := h.svc.CreateChat(r.Context(), userID(r), service.CreateChatInput{
		Title:    req.Title,
		Project:  toPatch(req.Project),
		Metadata: req.Metadata,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("chat_created", "chat_id", chat.ID, "user_id", chat.UserID)
	writeJSON(w, http.StatusCreated, dto.ToChatResponse(chat))
}

// Get handles GET /api/chats/{chatID}/.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	chat, err := h.svc.GetChat(r.Context(), userID(r), chi.URLParam(r, "chatID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToChatResponse(chat))
}

// Update handles PATCH /api/chats/{chatID}/.
func (h *ChatHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chat, err := h.svc.UpdateChat(r.Context(), userID(r), chi.URLParam(r, "chatID"), service.UpdateChatInput{
		Title:    req.Title,
		Project:  toPatch(req.Project),
		Metadata: req.Metadata,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToChatResponse(chat))
}

// Delete handles DELETE /api/chats/{chatID}/.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")
	if err := h.svc.DeleteChat(r.Context(), userID(r), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("chat_deleted", "chat_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func toPatch[T any](n dto.Nullable[T]) service.Patch[*T] {
	return service.Patch[*T]{Set: n.Set, Value: n.Value}
}
