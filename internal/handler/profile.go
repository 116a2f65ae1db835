package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/service"
)

// avatarFormOverhead is the multipart framing allowed on top of the file.
const avatarFormOverhead = 64 << 10

// ProfileService is the profile logic used by ProfileHandler.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*service.ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, input service.UpdateProfileInput) (*service.ProfileView, error)
	SetAvatar(ctx context.Context, userID string, r io.Reader, size int64) (*service.ProfileView, error)
	ClearAvatar(ctx context.Context, userID string) error
	MaxAvatarSize() int64
}

// SettingsService is the settings logic used by ProfileHandler.
type SettingsService interface {
	GetSettings(ctx context.Context, userID string) (*model.UserSettings, error)
	UpdateSettings(ctx context.Context, userID string, input service.UpdateSettingsInput) (*model.UserSettings, error)
}

// ProfileHandler serves the caller's profile, avatar and settings.
type ProfileHandler struct {
	profiles ProfileService
	settings SettingsService
	logger   *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles ProfileService, settings SettingsService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		settings: settings,
		logger:   logger.With("component", "handler.profile"),
	}
}

// GetProfile handles GET /api/profile/.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.GetProfile(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(view))
}

// UpdateProfile handles PATCH /api/profile/.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.profiles.UpdateProfile(r.Context(), userID(r), service.UpdateProfileInput{
		Bio:         req.Bio,
		Preferences: req.Preferences,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(view))
}

// UploadAvatar handles PUT /api/profile/avatar/ with a multipart "avatar"
// file field.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	maxSize := h.profiles.MaxAvatarSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+avatarFormOverhead)

	file, header, err := r.FormFile("avatar")
	if err != nil {
		var sizeErr *http.MaxBytesError
		switch {
		case errors.As(err, &sizeErr):
			writeValidationError(w, map[string][]string{
				"avatar": {fmt.Sprintf("Ensure the file is no larger than %d bytes.", maxSize)},
			})
		case errors.Is(err, http.ErrMissingFile):
			writeValidationError(w, map[string][]string{"avatar": {"No file was submitted."}})
		default:
			writeError(w, http.StatusBadRequest, "PARSE_ERROR", "Multipart form parse error.")
		}
		return
	}
	defer file.Close()

	view, err := h.profiles.SetAvatar(r.Context(), userID(r), file, header.Size)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(view))
}

// DeleteAvatar handles DELETE /api/profile/avatar/.
func (h *ProfileHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.ClearAvatar(r.Context(), userID(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /api/settings/.
func (h *ProfileHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetSettings(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToSettingsResponse(s))
}

// UpdateSettings handles PATCH /api/settings/.
func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req dto.SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.settings.UpdateSettings(r.Context(), userID(r), service.UpdateSettingsInput{
		Theme:          req.Theme,
		DefaultProject: toPatch(req.DefaultProject),
		LLMPreferences: req.LLMPreferences,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToSettingsResponse(s))
}

func profileResponse(v *service.ProfileView) dto.ProfileResponse {
	return dto.ToProfileResponse(v.Profile, v.Username, v.AvatarURL)
}
