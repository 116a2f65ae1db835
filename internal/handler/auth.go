package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/middleware"
	"github.com/aiiabox/aiiabox/internal/service"
)

// TokenService is the account logic used by TokenHandler.
type TokenService interface {
	Login(ctx context.Context, username, password string) (*service.IssuedToken, error)
	GetToken(ctx context.Context, userID string) (*service.IssuedToken, error)
	RotateToken(ctx context.Context, userID string) (*service.IssuedToken, error)
	RevokeToken(ctx context.Context, userID string) error
}

// TokenHandler serves the caller's own API token.
type TokenHandler struct {
	svc    TokenService
	logger *slog.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(svc TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{svc: svc, logger: logger.With("component", "handler.token")}
}

// Login handles POST /api/auth/token/. It is unauthenticated and returns
// a freshly issued key.
func (h *TokenHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("login_failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("login_succeeded", "user_id", issued.Token.UserID, "token_prefix", issued.Token.KeyPrefix)
	writeJSON(w, http.StatusOK, dto.ToTokenResponse(issued.Token, issued.Plaintext))
}

// Get handles GET /api/auth/token/. The key is only included when a new
// token had to be issued.
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	issued, err := h.svc.GetToken(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToTokenResponse(issued.Token, issued.Plaintext))
}

// Rotate handles POST /api/auth/token/rotate/.
func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	issued, err := h.svc.RotateToken(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToTokenResponse(issued.Token, issued.Plaintext))
}

// Revoke handles DELETE /api/auth/token/.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevokeToken(r.Context(), userID(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
