package dto

import (
	"time"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/model"
)

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse describes the caller's token. Token holds the plaintext
// key and is only present right after the key was issued.
type TokenResponse struct {
	Token     string    `json:"token,omitempty"`
	KeyPrefix string    `json:"key_prefix"`
	Preview   string    `json:"preview"`
	Created   time.Time `json:"created"`
}

// ToTokenResponse converts an issued token to TokenResponse.
func ToTokenResponse(t *model.Token, plaintext string) TokenResponse {
	return TokenResponse{
		Token:     plaintext,
		KeyPrefix: t.KeyPrefix,
		Preview:   auth.Preview(t.KeyPrefix),
		Created:   t.CreatedAt,
	}
}

// AdminTokenResponse is a token row in the staff listing.
type AdminTokenResponse struct {
	User       string     `json:"user"`
	Username   string     `json:"username"`
	Preview    string     `json:"preview"`
	Tier       string     `json:"rate_limit_tier"`
	Created    time.Time  `json:"created"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// ToAdminTokenResponse converts a token with its owner to AdminTokenResponse.
func ToAdminTokenResponse(t *model.TokenWithUser) AdminTokenResponse {
	return AdminTokenResponse{
		User:       t.UserID,
		Username:   t.Username,
		Preview:    auth.Preview(t.KeyPrefix),
		Tier:       t.RateLimitTier,
		Created:    t.CreatedAt,
		LastUsedAt: t.LastUsedAt,
	}
}

// CreateUserRequest is the staff request to create an account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
	IsStaff  bool   `json:"is_staff"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsStaff   bool      `json:"is_staff"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"date_joined"`
}

// CreateUserResponse carries the new user and its first token.
type CreateUserResponse struct {
	User  UserResponse  `json:"user"`
	Token TokenResponse `json:"token"`
}

// ToUserResponse converts a User model to UserResponse.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsStaff:   u.IsStaff,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
