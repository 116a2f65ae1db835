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

// AdminService is the account logic used by AdminHandler.
type AdminService interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, *service.IssuedToken, error)
	ListTokens(ctx context.Context, params service.ListParams) (*service.ListResult[*model.TokenWithUser], error)
	RevokeToken(ctx context.Context, userID string) error
}

// AdminHandler provides staff-only account endpoints.
type AdminHandler struct {
	svc     AdminService
	baseURL string
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc AdminService, baseURL string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger.With("component", "handler.admin"),
	}
}

// ListTokens handles GET /api/admin/tokens/.
func (h *AdminHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.ListTokens(r.Context(), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(h.baseURL, r, params, res, dto.ToAdminTokenResponse))
}

// RevokeToken handles DELETE /api/admin/tokens/{userID}/.
func (h *AdminHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "userID")
	if err := h.svc.RevokeToken(r.Context(), target); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("token_revoked_by_staff",
		"user_id", target,
		"staff_user_id", userID(r),
	)
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /api/admin/users/.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, issued, err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsStaff:  req.IsStaff,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_created_by_staff",
		"user_id", user.ID,
		"staff_user_id", userID(r),
	)
	writeJSON(w, http.StatusCreated, dto.CreateUserResponse{
		User:  dto.ToUserResponse(user),
		Token: dto.ToTokenResponse(issued.Token, issued.Plaintext),
	})
}
