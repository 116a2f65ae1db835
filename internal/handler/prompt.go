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

// PromptService is the prompt template logic used by PromptHandler.
type PromptService interface {
	CreatePrompt(ctx context.Context, userID string, input service.PromptInput) (*model.PromptTemplate, error)
	GetPrompt(ctx context.Context, userID, id string) (*model.PromptTemplate, error)
	ListPrompts(ctx context.Context, userID string, filter service.PromptFilter, params service.ListParams) (*service.ListResult[*model.PromptTemplate], error)
	UpdatePrompt(ctx context.Context, userID, id string, input service.PromptInput) (*model.PromptTemplate, error)
	DeletePrompt(ctx context.Context, userID, id string) error
	RenderPrompt(ctx context.Context, userID, id string, values map[string]string) (string, error)
}

// PromptHandler handles HTTP requests for prompt templates.
type PromptHandler struct {
	svc     PromptService
	baseURL string
	logger  *slog.Logger
}

// NewPromptHandler creates a new PromptHandler.
func NewPromptHandler(svc PromptService, baseURL string, logger *slog.Logger) *PromptHandler {
	return &PromptHandler{svc: svc, baseURL: baseURL, logger: logger.With("component", "handler.prompt")}
}

// List handles GET /api/prompts/?tag=&search=.
func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	filter := service.PromptFilter{
		Tag:    r.URL.Query().Get("tag"),
		Search: r.URL.Query().Get("search"),
	}
	res, err := h.svc.ListPrompts(r.Context(), userID(r), filter, params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(h.baseURL, r, params, res, dto.ToPromptResponse))
}

// Create handles POST /api/prompts/.
func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePrompt(r.Context(), userID(r), promptInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToPromptResponse(p))
}

// Get handles GET /api/prompts/{promptID}/.
func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPrompt(r.Context(), userID(r), chi.URLParam(r, "promptID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPromptResponse(p))
}

// Update handles PATCH /api/prompts/{promptID}/.
func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePrompt(r.Context(), userID(r), chi.URLParam(r, "promptID"), promptInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPromptResponse(p))
}

// Delete handles DELETE /api/prompts/{promptID}/.
func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePrompt(r.Context(), userID(r), chi.URLParam(r, "promptID")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Render handles POST /api/prompts/{promptID}/render/.
func (h *PromptHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req dto.RenderPromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.RenderPrompt(r.Context(), userID(r), chi.URLParam(r, "promptID"), req.Variables)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RenderPromptResponse{Content: out})
}

func promptInput(req dto.PromptRequest) service.PromptInput {
	return service.PromptInput{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
	}
}
