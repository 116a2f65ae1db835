package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/model"
)

// CompletionService is the completion logic used by CompletionHandler.
type CompletionService interface {
	RequestCompletion(ctx context.Context, userID, chatID, modelName string) (*model.CompletionJob, error)
	GetCompletion(ctx context.Context, userID, chatID, id string) (*model.CompletionJob, error)
}

// CompletionHandler queues and reports assistant replies for a chat.
type CompletionHandler struct {
	svc    CompletionService
	logger *slog.Logger
}

// NewCompletionHandler creates a new CompletionHandler.
func NewCompletionHandler(svc CompletionService, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{svc: svc, logger: logger.With("component", "handler.completion")}
}

// Create handles POST /api/chats/{chatID}/completions/.
func (h *CompletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.svc.RequestCompletion(r.Context(), userID(r), chi.URLParam(r, "chatID"), req.Model)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("completion_queued", "job_id", job.ID, "chat_id", job.ChatID, "model", job.Model)
	writeJSON(w, http.StatusAccepted, dto.ToCompletionResponse(job))
}

// Get handles GET /api/chats/{chatID}/completions/{jobID}/.
func (h *CompletionHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetCompletion(r.Context(), userID(r), chi.URLParam(r, "chatID"), chi.URLParam(r, "jobID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCompletionResponse(job))
}
