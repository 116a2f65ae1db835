package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for profile and settings operations.
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrSettingsNotFound = errors.New("settings not found")
)

// GetProfile retrieves the profile of a user.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, avatar_key, bio, preferences, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID)

	var p model.UserProfile
	var prefs []byte
	err := row.Scan(&p.UserID, &p.AvatarKey, &p.Bio, &prefs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p.Preferences, err = decodeObject(prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &p, nil
}

// UpdateProfile stores bio and preferences and refreshes updated_at on p.
func (r *Repository) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	prefs, err := json.Marshal(jsonObject(p.Preferences))
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE user_profiles SET bio = $2, preferences = $3, updated_at = $4
		WHERE user_id = $1
		RETURNING updated_at
	`, p.UserID, p.Bio, prefs, time.Now().UTC()).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// SetAvatarKey replaces the avatar object key (nil clears it) and returns
// the previous key so the caller can delete the old object.
func (r *Repository) SetAvatarKey(ctx context.Context, userID string, key *string) (*string, error) {
	var previous *string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT avatar_key FROM user_profiles WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&previous)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock profile: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE user_profiles SET avatar_key = $2, updated_at = $3 WHERE user_id = $1`,
			userID, key, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to set avatar: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// GetSettings retrieves the settings of a user.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*model.UserSettings, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, theme, default_project_id, llm_preferences, created_at, updated_at
		FROM user_settings
		WHERE user_id = $1
	`, userID)

	var s model.UserSettings
	var theme string
	var prefs []byte
	err := row.Scan(&s.UserID, &theme, &s.DefaultProjectID, &prefs, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	s.Theme = model.Theme(theme)
	if s.LLMPreferences, err = decodeObject(prefs); err != nil {
		return nil, fmt.Errorf("failed to decode llm preferences: %w", err)
	}
	return &s, nil
}

// UpdateSettings stores all mutable settings fields.
func (r *Repository) UpdateSettings(ctx context.Context, s *model.UserSettings) error {
	prefs, err := json.Marshal(jsonObject(s.LLMPreferences))
	if err != nil {
		return fmt.Errorf("failed to encode llm preferences: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE user_settings
		SET theme = $2, default_project_id = $3, llm_preferences = $4, updated_at = $5
		WHERE user_id = $1
		RETURNING updated_at
	`, s.UserID, string(s.Theme), s.DefaultProjectID, prefs, time.Now().UTC()).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSettingsNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
