package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aiiabox/aiiabox/internal/middleware"
	"github.com/aiiabox/aiiabox/internal/service"
)

type errorMapping struct {
	target error
	status int
	code   string
	detail string
}

var serviceErrors = []errorMapping{
	{service.ErrChatNotFound, http.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found."},
	{service.ErrMessageNotFound, http.StatusNotFound, "MESSAGE_NOT_FOUND", "Message not found."},
	{service.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found."},
	{service.ErrPromptNotFound, http.StatusNotFound, "PROMPT_NOT_FOUND", "Prompt template not found."},
	{service.ErrCompletionJobNotFound, http.StatusNotFound, "COMPLETION_NOT_FOUND", "Completion not found."},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found."},
	{service.ErrTokenNotFound, http.StatusNotFound, "TOKEN_NOT_FOUND", "Token not found."},
	{service.ErrProfileNotFound, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found."},
	{service.ErrSettingsNotFound, http.StatusNotFound, "SETTINGS_NOT_FOUND", "Settings not found."},
	{service.ErrInvalidPage, http.StatusNotFound, "INVALID_PAGE", "Invalid page."},
	{service.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN", "A user with that username already exists."},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS", "Unable to log in with provided credentials."},
	{service.ErrStorageDisabled, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Avatar storage is not available."},
	{service.ErrLLMDisabled, http.StatusServiceUnavailable, "LLM_DISABLED", "Completions are not enabled."},
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr.Fields)
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, m.detail)
			return
		}
	}

	logger.Error("internal_error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "A server error occurred.")
}
