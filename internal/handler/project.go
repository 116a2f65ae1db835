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

// ProjectService is the project logic used by ProjectHandler.
type ProjectService interface {
	CreateProject(ctx context.Context, userID string, input service.ProjectInput) (*model.Project, error)
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string, params service.ListParams) (*service.ListResult[*model.Project], error)
	UpdateProject(ctx context.Context, userID, id string, input service.ProjectInput) (*model.Project, error)
	DeleteProject(ctx context.Context, userID, id string) error
}

// ProjectHandler handles HTTP requests for projects.
type ProjectHandler struct {
	svc     ProjectService
	baseURL string
	logger  *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc ProjectService, baseURL string, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, baseURL: baseURL, logger: logger.With("component", "handler.project")}
}

// List handles GET /api/projects/.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.ListProjects(r.Context(), userID(r), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(h.baseURL, r, params, res, dto.ToProjectResponse))
}

// Create handles POST /api/projects/.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), userID(r), service.ProjectInput{Name: req.Name, Description: req.Description})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToProjectResponse(p))
}

// Get handles GET /api/projects/{projectID}/.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), userID(r), chi.URLParam(r, "projectID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProjectResponse(p))
}

// Update handles PATCH /api/projects/{projectID}/.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), userID(r), chi.URLParam(r, "projectID"), service.ProjectInput{Name: req.Name, Description: req.Description})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProjectResponse(p))
}

// Delete handles DELETE /api/projects/{projectID}/.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), userID(r), chi.URLParam(r, "projectID")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
