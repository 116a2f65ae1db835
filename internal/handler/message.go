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

// MessageService is the message logic used by MessageHandler.
type MessageService interface {
	CreateMessage(ctx context.Context, userID, chatID string, input service.MessageInput) (*model.Message, error)
	GetMessage(ctx context.Context, userID, chatID, id string) (*model.Message, error)
	ListMessages(ctx context.Context, userID, chatID string, params service.ListParams) (*service.ListResult[*model.Message], error)
	UpdateMessage(ctx context.Context, userID, chatID, id string, input service.MessageInput) (*model.Message, error)
	DeleteMessage(ctx context.Context, userID, chatID, id string) error
}

// MessageHandler handles messages nested under /api/chats/{chatID}/messages/.
type MessageHandler struct {
	svc     MessageService
	baseURL string
	logger  *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc MessageService, baseURL string, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger.With("component", "handler.message"),
	}
}

// List handles GET /api/chats/{chatID}/messages/.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.ListMessages(r.Context(), userID(r), chi.URLParam(r, "chatID"), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(h.baseURL, r, params, res, dto.ToMessageResponse))
}

// Create handles POST /api/chats/{chatID}/messages/.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.svc.CreateMessage(r.Context(), userID(r), chi.URLParam(r, "chatID"), service.MessageInput{
		Content: req.Content,
		Role:    req.Role,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToMessageResponse(msg))
}

// Get handles GET /api/chats/{chatID}/messages/{messageID}/.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.GetMessage(r.Context(), userID(r), chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToMessageResponse(msg))
}

// Update handles PATCH /api/chats/{chatID}/messages/{messageID}/.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.svc.UpdateMessage(r.Context(), userID(r), chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID"), service.MessageInput{
		Content: req.Content,
		Role:    req.Role,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToMessageResponse(msg))
}

// Delete handles DELETE /api/chats/{chatID}/messages/{messageID}/.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMessage(r.Context(), userID(r), chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
