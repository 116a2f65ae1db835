package dto

import (
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
)

// ProfileRequest is a partial profile update.
type ProfileRequest struct {
	Bio         *string        `json:"bio"`
	Preferences map[string]any `json:"preferences"`
}

// ProfileResponse represents the caller's profile.
type ProfileResponse struct {
	User        string         `json:"user"`
	Username    string         `json:"username"`
	Bio         string         `json:"bio"`
	Preferences map[string]any `json:"preferences"`
	AvatarURL   *string        `json:"avatar_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToProfileResponse builds a ProfileResponse.
func ToProfileResponse(p *model.UserProfile, username string, avatarURL *string) ProfileResponse {
	prefs := p.Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	return ProfileResponse{
		User:        p.UserID,
		Username:    username,
		Bio:         p.Bio,
		Preferences: prefs,
		AvatarURL:   avatarURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// SettingsRequest is a partial settings update. LLMPreferences is merged
// key by key.
type SettingsRequest struct {
	Theme          *string          `json:"theme"`
	DefaultProject Nullable[string] `json:"default_project"`
	LLMPreferences map[string]any   `json:"llm_preferences"`
}

// SettingsResponse represents the caller's settings.
type SettingsResponse struct {
	Theme          string         `json:"theme"`
	DefaultProject *string        `json:"default_project"`
	LLMPreferences map[string]any `json:"llm_preferences"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ToSettingsResponse converts UserSettings to SettingsResponse.
func ToSettingsResponse(s *model.UserSettings) SettingsResponse {
	prefs := s.LLMPreferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	return SettingsResponse{
		Theme:          string(s.Theme),
		DefaultProject: s.DefaultProjectID,
		LLMPreferences: prefs,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// ProjectRequest is the body of project create and update requests.
type ProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToProjectResponse converts a Project model to ProjectResponse.
func ToProjectResponse(p *model.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
