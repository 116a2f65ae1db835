package model

import "time"

// Theme is the UI theme preference stored in user settings.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// IsValid reports whether t is a known theme.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeAuto:
		return true
	}
	return false
}

// LLM preference keys.
const (
	LLMKeyModel       = "model"
	LLMKeyTemperature = "temperature"
	LLMKeyMaxTokens   = "max_tokens"
	LLMKeyTopP        = "top_p"
	LLMKeyTopK        = "top_k"
)

// DefaultLLMPreferences are applied for any key a user has not set.
var DefaultLLMPreferences = map[string]any{
	LLMKeyModel:       "llama2",
	LLMKeyTemperature: 0.7,
	LLMKeyMaxTokens:   2048,
	LLMKeyTopP:        0.95,
	LLMKeyTopK:        40,
}

// UserProfile holds user-visible personal information.
type UserProfile struct {
	UserID      string         `json:"user_id"`
	AvatarKey   *string        `json:"-"`
	Bio         string         `json:"bio"`
	Preferences map[string]any `json:"preferences"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HasAvatar reports whether an avatar object is stored for the profile.
func (p *UserProfile) HasAvatar() bool {
	return p.AvatarKey != nil && *p.AvatarKey != ""
}

// UserSettings holds account-level preferences.
type UserSettings struct {
	UserID           string         `json:"user_id"`
	Theme            Theme          `json:"theme"`
	DefaultProjectID *string        `json:"default_project,omitempty"`
	LLMPreferences   map[string]any `json:"llm_preferences"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// LLMSetting returns the stored preference for key, or def when unset.
func (s *UserSettings) LLMSetting(key string, def any) any {
	if s.LLMPreferences == nil {
		return def
	}
	if v, ok := s.LLMPreferences[key]; ok && v != nil {
		return v
	}
	return def
}

// EffectiveLLM returns the user's preferences with defaults filled in.
func (s *UserSettings) EffectiveLLM() LLMOptions {
	return LLMOptions{
		Model:       stringValue(s.LLMSetting(LLMKeyModel, DefaultLLMPreferences[LLMKeyModel])),
		Temperature: floatValue(s.LLMSetting(LLMKeyTemperature, DefaultLLMPreferences[LLMKeyTemperature])),
		MaxTokens:   int(floatValue(s.LLMSetting(LLMKeyMaxTokens, DefaultLLMPreferences[LLMKeyMaxTokens]))),
		TopP:        floatValue(s.LLMSetting(LLMKeyTopP, DefaultLLMPreferences[LLMKeyTopP])),
		TopK:        int(floatValue(s.LLMSetting(LLMKeyTopK, DefaultLLMPreferences[LLMKeyTopK]))),
	}
}

// LLMOptions are resolved generation parameters.
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// floatValue accepts the numeric shapes produced by encoding/json and Go literals.
func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}
