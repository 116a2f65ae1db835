// Package testutil holds fixtures and database helpers for the integration tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration newest first, then every up
// migration oldest first, leaving an empty schema at the latest version.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := MigrationFiles(".down.sql")
	if err != nil {
		return err
	}
	slices.Reverse(downs)
	ups, err := MigrationFiles(".up.sql")
	if err != nil {
		return err
	}

	for _, name := range append(downs, ups...) {
		if err := ApplyMigration(ctx, pool, name); err != nil {
			return err
		}
	}

	// golang-migrate bookkeeping is owned by the migrator, not these tests.
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}
	return nil
}

// MigrationFiles lists embedded migration names ending in suffix, oldest first.
func MigrationFiles(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// ApplyMigration executes one embedded migration file as-is.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	sql, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

// NewTestUser creates an active non-staff user with a unique username.
// The password hash is a placeholder and will not verify.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC()
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Username:     "user_" + strings.ToLower(id[len(id)-10:]),
		Email:        "user@example.com",
		PasswordHash: "placeholder",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestToken creates a token record for userID with the given prefix and hash.
func NewTestToken(t testing.TB, userID, prefix, hash string) *model.Token {
	t.Helper()
	return &model.Token{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyPrefix:     prefix,
		KeyHash:       hash,
		RateLimitTier: model.TierFree,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewTestChat creates a chat owned by userID.
func NewTestChat(t testing.TB, userID, title string) *model.Chat {
	t.Helper()
	now := time.Now().UTC()
	return &model.Chat{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Title:     title,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestMessage creates a user-role message in chatID.
func NewTestMessage(t testing.TB, chatID, userID, content string) *model.Message {
	t.Helper()
	return &model.Message{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		UserID:    userID,
		Content:   content,
		Role:      model.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestProject creates a project owned by userID.
func NewTestProject(t testing.TB, userID, name string) *model.Project {
	t.Helper()
	now := time.Now().UTC()
	return &model.Project{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestPrompt creates a prompt template owned by userID.
func NewTestPrompt(t testing.TB, userID, name, content string, tags ...string) *model.PromptTemplate {
	t.Helper()
	now := time.Now().UTC()
	return &model.PromptTemplate{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
