package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

// SettingsStore is the persistence used by SettingsService.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*model.UserSettings, error)
	UpdateSettings(ctx context.Context, s *model.UserSettings) error
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
}

// SettingsService manages account-level preferences.
type SettingsService struct {
	store SettingsStore
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// UpdateSettingsInput defines a partial settings update. LLMPreferences is
// merged key by key; a nil value removes the key.
type UpdateSettingsInput struct {
	Theme          *string
	DefaultProject Patch[*string]
	LLMPreferences map[string]any
}

// GetSettings returns the user's settings.
func (s *SettingsService) GetSettings(ctx context.Context, userID string) (*model.UserSettings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies a partial update to the user's settings.
func (s *SettingsService) UpdateSettings(ctx context.Context, userID string, input UpdateSettingsInput) (*model.UserSettings, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if input.Theme != nil {
		theme := model.Theme(strings.TrimSpace(*input.Theme))
		if !theme.IsValid() {
			errs.addf("theme", msgInvalidChoice, *input.Theme)
		}
		settings.Theme = theme
	}
	if input.DefaultProject.Set {
		projectID, err := resolveProjectField(ctx, s.store, errs, "default_project", userID, input.DefaultProject)
		if err != nil {
			return nil, err
		}
		settings.DefaultProjectID = projectID
	}
	if input.LLMPreferences != nil {
		settings.LLMPreferences = mergeLLMPreferences(errs, settings.LLMPreferences, input.LLMPreferences)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		switch {
		case errors.Is(err, repository.ErrSettingsNotFound):
			return nil, ErrSettingsNotFound
		case errors.Is(err, repository.ErrProjectNotFound):
			return nil, NewValidationError("default_project", fmt.Sprintf(msgDoesNotExist, *settings.DefaultProjectID))
		}
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}

// mergeLLMPreferences overlays patch on current and validates known keys.
func mergeLLMPreferences(errs fieldErrors, current, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := patch[k]
		if v == nil {
			delete(merged, k)
			continue
		}
		if msg := validateLLMPreference(k, v); msg != "" {
			errs.add("llm_preferences", msg)
			continue
		}
		merged[k] = v
	}
	return merged
}

func validateLLMPreference(key string, v any) string {
	switch key {
	case model.LLMKeyModel:
		if s, ok := v.(string); !ok || strings.TrimSpace(s) == "" {
			return "model must be a non-empty string."
		}
	case model.LLMKeyTemperature:
		return checkRange(key, v, 0, 2, false)
	case model.LLMKeyMaxTokens:
		return checkRange(key, v, 1, 32768, true)
	case model.LLMKeyTopP:
		return checkRange(key, v, 0, 1, false)
	case model.LLMKeyTopK:
		return checkRange(key, v, 0, math.MaxInt32, true)
	}
	return ""
}

func checkRange(key string, v any, lo, hi float64, integer bool) string {
	n, ok := v.(float64)
	if !ok {
		if i, isInt := v.(int); isInt {
			n, ok = float64(i), true
		}
	}
	if !ok || math.IsNaN(n) {
		return fmt.Sprintf("%s must be a number.", key)
	}
	if integer && n != math.Trunc(n) {
		return fmt.Sprintf("%s must be an integer.", key)
	}
	if n < lo || n > hi {
		if hi == math.MaxInt32 {
			return fmt.Sprintf("%s must be at least %g.", key, lo)
		}
		return fmt.Sprintf("%s must be between %g and %g.", key, lo, hi)
	}
	return ""
}
