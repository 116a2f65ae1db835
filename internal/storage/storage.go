// Package storage keeps user avatars in S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"
)

// avatarPrefix is the object key prefix for avatar uploads.
const avatarPrefix = "avatars"

// ErrEmptyKey is returned when an operation is given no object key.
var ErrEmptyKey = errors.New("storage: empty object key")

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Store uploads, presigns and removes avatar objects.
type Store struct {
	client    *minio.Client
	bucket    string
	region    string
	urlExpiry time.Duration
	logger    *slog.Logger
}

// New creates a Store. No network call is made; use EnsureBucket on boot.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage: endpoint not configured")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket not configured")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		urlExpiry: cfg.URLExpiry,
		logger:    logger.With("component", "storage"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created bucket", "bucket", s.bucket)
	return nil
}

// Ping reports whether the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// PutAvatar uploads an avatar image and returns its object key.
func (s *Store) PutAvatar(ctx context.Context, r io.Reader, size int64, contentType, ext string) (string, error) {
	key := AvatarKey(time.Now(), ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=86400",
	})
	if err != nil {
		return "", fmt.Errorf("put avatar: %w", err)
	}
	return key, nil
}

// PresignedURL returns a time-limited GET URL for key.
func (s *Store) PresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes the object at key. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// AvatarKey builds a date-partitioned key: avatars/YYYY/MM/DD/<ulid><ext>.
func AvatarKey(now time.Time, ext string) string {
	now = now.UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("%s/%s/%s%s", avatarPrefix, now.Format("2006/01/02"), id.String(), ext)
}
