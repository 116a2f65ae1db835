package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
	"github.com/aiiabox/aiiabox/internal/storage"
)

// DefaultMaxAvatarSize is the avatar upload limit when none is configured.
const DefaultMaxAvatarSize = 10 << 20

const msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// ProfileStore is the persistence used by ProfileService.
type ProfileStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, p *model.UserProfile) error
	SetAvatarKey(ctx context.Context, userID string, key *string) (*string, error)
}

// AvatarStore keeps avatar objects.
type AvatarStore interface {
	PutAvatar(ctx context.Context, r io.Reader, size int64, contentType, ext string) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProfileService manages user profiles and avatars.
type ProfileService struct {
	store         ProfileStore
	avatars       AvatarStore
	maxAvatarSize int64
	logger        *slog.Logger
}

// NewProfileService creates a new ProfileService. avatars may be nil when
// object storage is disabled.
func NewProfileService(store ProfileStore, avatars AvatarStore, maxAvatarSize int64, logger *slog.Logger) *ProfileService {
	if maxAvatarSize <= 0 {
		maxAvatarSize = DefaultMaxAvatarSize
	}
	return &ProfileService{
		store:         store,
		avatars:       avatars,
		maxAvatarSize: maxAvatarSize,
		logger:        logger.With("component", "service.profile"),
	}
}

// ProfileView is a profile with the fields rendered alongside it.
type ProfileView struct {
	Profile   *model.UserProfile
	Username  string
	AvatarURL *string
}

// UpdateProfileInput defines a partial profile update.
type UpdateProfileInput struct {
	Bio         *string
	Preferences map[string]any
}

// MaxAvatarSize returns the upload limit in bytes.
func (s *ProfileService) MaxAvatarSize() int64 {
	return s.maxAvatarSize
}

// GetProfile returns the user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return s.view(ctx, user.Username, profile), nil
}

// UpdateProfile applies a partial update to the user's profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*ProfileView, error) {
	view, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := view.Profile

	if input.Bio != nil {
		profile.Bio = *input.Bio
	}
	if input.Preferences != nil {
		profile.Preferences = input.Preferences
	}

	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return view, nil
}

// SetAvatar stores a new avatar image and removes the previous object.
// size is the upload length as reported by the client.
func (s *ProfileService) SetAvatar(ctx context.Context, userID string, r io.Reader, size int64) (*ProfileView, error) {
	if s.avatars == nil {
		return nil, ErrStorageDisabled
	}
	if size > s.maxAvatarSize {
		return nil, NewValidationError("avatar", fmt.Sprintf("Ensure the file is no larger than %d bytes.", s.maxAvatarSize))
	}
	if size <= 0 {
		return nil, NewValidationError("avatar", "The submitted file is empty.")
	}

	head := make([]byte, storage.SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	contentType, ext, ok := storage.DetectImage(head[:n])
	if !ok {
		return nil, NewValidationError("avatar", msgInvalidImage)
	}

	body := io.MultiReader(bytes.NewReader(head[:n]), r)
	key, err := s.avatars.PutAvatar(ctx, body, size, contentType, ext)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.SetAvatarKey(ctx, userID, &key)
	if err != nil {
		s.deleteObject(ctx, key)
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("set avatar: %w", err)
	}
	if previous != nil && *previous != "" && *previous != key {
		s.deleteObject(ctx, *previous)
	}

	s.logger.Info("avatar updated", "user_id", userID, "key", key, "content_type", contentType)
	return s.GetProfile(ctx, userID)
}

// ClearAvatar removes the user's avatar.
func (s *ProfileService) ClearAvatar(ctx context.Context, userID string) error {
	if s.avatars == nil {
		return ErrStorageDisabled
	}
	previous, err := s.store.SetAvatarKey(ctx, userID, nil)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	if previous != nil && *previous != "" {
		s.deleteObject(ctx, *previous)
	}
	return nil
}

func (s *ProfileService) view(ctx context.Context, username string, profile *model.UserProfile) *ProfileView {
	v := &ProfileView{Profile: profile, Username: username}
	if !profile.HasAvatar() || s.avatars == nil {
		return v
	}
	u, err := s.avatars.PresignedURL(ctx, *profile.AvatarKey)
	if err != nil {
		s.logger.Warn("failed to presign avatar", "user_id", profile.UserID, "error", err)
		return v
	}
	v.AvatarURL = &u
	return v
}

// deleteObject removes an orphaned object; failures leave garbage behind
// and are only logged.
func (s *ProfileService) deleteObject(ctx context.Context, key string) {
	if err := s.avatars.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete avatar object", "key", key, "error", err)
	}
}
