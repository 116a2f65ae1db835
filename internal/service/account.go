package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

const maxUsernameLength = 150

var usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// AccountStore is the persistence used by AccountService.
type AccountStore interface {
	CreateUserWithDefaults(ctx context.Context, user *model.User, token *model.Token) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ReplaceActiveToken(ctx context.Context, token *model.Token) ([]string, error)
	GetActiveTokenByUserID(ctx context.Context, userID string) (*model.Token, error)
	RevokeActiveToken(ctx context.Context, userID string) (string, error)
	ListActiveTokens(ctx context.Context, page repository.Page) ([]*model.TokenWithUser, int64, error)
}

// TokenInvalidator drops cached auth contexts for a token.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, tokenID string) error
}

// AccountService manages users and their API tokens.
type AccountService struct {
	store  AccountStore
	cache  TokenInvalidator
	logger *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(store AccountStore, cache TokenInvalidator, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "service.account"),
	}
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	IsStaff  bool
}

// IssuedToken is a token and, when freshly issued, its plaintext key.
// Plaintext is empty for tokens that already existed.
type IssuedToken struct {
	Token     *model.Token
	Plaintext string
}

// CreateUser creates a user with profile, settings and first token.
func (s *AccountService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, *IssuedToken, error) {
	errs := fieldErrors{}
	username := strings.TrimSpace(input.Username)
	switch {
	case username == "":
		errs.add("username", msgBlank)
	case utf8.RuneCountInString(username) > maxUsernameLength:
		errs.addf("username", msgMaxLength, maxUsernameLength)
	case !usernameRegex.MatchString(username):
		errs.add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if input.Password == "" {
		errs.add("password", msgBlank)
	} else {
		for _, problem := range auth.ValidatePassword(input.Password, username) {
			errs.add("password", problem)
		}
	}
	if err := errs.err(); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           newID(),
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hash,
		IsStaff:      input.IsStaff,
		IsActive:     true,
		CreatedAt:    now,
	}

	issued, err := newIssuedToken(user.ID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.CreateUserWithDefaults(ctx, user, issued.Token); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		"user_id", user.ID,
		"is_staff", user.IsStaff,
		"token_prefix", issued.Token.KeyPrefix,
	)
	return user, issued, nil
}

// Login exchanges credentials for a fresh token, revoking the previous one.
func (s *AccountService) Login(ctx context.Context, username, password string) (*IssuedToken, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.DummyVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.rotate(ctx, user.ID)
}

// GetToken returns the user's active token, issuing one when none exists.
func (s *AccountService) GetToken(ctx context.Context, userID string) (*IssuedToken, error) {
	token, err := s.store.GetActiveTokenByUserID(ctx, userID)
	if err == nil {
		return &IssuedToken{Token: token}, nil
	}
	if !errors.Is(err, repository.ErrTokenNotFound) {
		return nil, err
	}
	return s.rotate(ctx, userID)
}

// RotateToken revokes the user's token and issues a new one.
func (s *AccountService) RotateToken(ctx context.Context, userID string) (*IssuedToken, error) {
	return s.rotate(ctx, userID)
}

// RevokeToken revokes the user's active token.
func (s *AccountService) RevokeToken(ctx context.Context, userID string) error {
	tokenID, err := s.store.RevokeActiveToken(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	s.invalidate(ctx, tokenID)
	s.logger.Info("token revoked", "user_id", userID, "token_id", tokenID)
	return nil
}

// ListTokens returns active tokens across all users.
func (s *AccountService) ListTokens(ctx context.Context, params ListParams) (*ListResult[*model.TokenWithUser], error) {
	tokens, total, err := s.store.ListActiveTokens(ctx, params.repoPage())
	if err != nil {
		return nil, err
	}
	return pageResult(params, tokens, total)
}

// UserByUsername looks a user up by name.
func (s *AccountService) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UserByID looks a user up by id.
func (s *AccountService) UserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) rotate(ctx context.Context, userID string) (*IssuedToken, error) {
	issued, err := newIssuedToken(userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.ReplaceActiveToken(ctx, issued.Token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("replace token: %w", err)
	}
	for _, id := range revoked {
		s.invalidate(ctx, id)
	}

	s.logger.Info("token issued",
		"user_id", userID,
		"token_prefix", issued.Token.KeyPrefix,
		"revoked", len(revoked),
	)
	return issued, nil
}

// invalidate drops cached auth for a token. Failures only delay revocation
// until the cache entry expires, so they are logged.
func (s *AccountService) invalidate(ctx context.Context, tokenID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateToken(ctx, tokenID); err != nil {
		s.logger.Warn("failed to invalidate cached token", "token_id", tokenID, "error", err)
	}
}

func newIssuedToken(userID string, now time.Time) (*IssuedToken, error) {
	gen, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}
	return &IssuedToken{
		Token: &model.Token{
			ID:            newID(),
			UserID:        userID,
			KeyPrefix:     gen.Prefix,
			KeyHash:       gen.Hash,
			RateLimitTier: model.TierFree,
			CreatedAt:     now,
		},
		Plaintext: gen.Plaintext,
	}, nil
}
