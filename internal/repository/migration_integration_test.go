//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiiabox/aiiabox/internal/testutil"
)

func schemaPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testutil.RequireEnv(t, "DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unlock() })

	require.NoError(t, testutil.ResetSchema(ctx, pool))
	return ctx, pool
}

func hasTable(ctx context.Context, t *testing.T, pool *pgxpool.Pool, table string) bool {
	t.Helper()
	var ok bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT to_regclass('public.' || $1) IS NOT NULL`, table,
	).Scan(&ok))
	return ok
}

func TestIntegrationSchema_Tables(t *testing.T) {
	ctx, pool := schemaPool(t)

	for _, table := range []string{
		"users", "auth_tokens", "projects", "user_profiles", "user_settings",
		"chats", "messages", "prompt_templates", "completion_jobs",
	} {
		assert.True(t, hasTable(ctx, t, pool, table), table)
	}
}

func TestIntegrationSchema_MessageColumns(t *testing.T) {
	ctx, pool := schemaPool(t)

	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'messages'`)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())

	assert.Subset(t, cols, []string{"id", "chat_id", "user_id", "content", "role", "tokens", "created_at"})
}

func TestIntegrationSchema_Constraints(t *testing.T) {
	ctx, pool := schemaPool(t)

	for _, stmt := range []string{
		`INSERT INTO users (id, username, password_hash) VALUES ('u1', 'alice', 'x')`,
		`INSERT INTO chats (id, user_id, title) VALUES ('c1', 'u1', 'hello')`,
		`INSERT INTO auth_tokens (id, user_id, key_prefix, key_hash) VALUES ('t1', 'u1', 'abcdef01', 'h')`,
	} {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	rejected := map[string]string{
		"case-insensitive username": `INSERT INTO users (id, username, password_hash) VALUES ('u2', 'ALICE', 'x')`,
		"unknown role":              `INSERT INTO messages (id, chat_id, user_id, content, role) VALUES ('m1', 'c1', 'u1', 'hi', 'robot')`,
		"negative tokens":           `INSERT INTO messages (id, chat_id, user_id, content, role, tokens) VALUES ('m2', 'c1', 'u1', 'hi', 'user', -1)`,
		"unknown theme":             `INSERT INTO user_settings (user_id, theme) VALUES ('u1', 'neon')`,
		"second active token":       `INSERT INTO auth_tokens (id, user_id, key_prefix, key_hash) VALUES ('t2', 'u1', 'abcdef02', 'h')`,
	}
	for name, stmt := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Exec(ctx, stmt)
			assert.Error(t, err)
		})
	}
}

func TestIntegrationSchema_ChatDeleteCascades(t *testing.T) {
	ctx, pool := schemaPool(t)

	for _, stmt := range []string{
		`INSERT INTO users (id, username, password_hash) VALUES ('u1', 'bob', 'x')`,
		`INSERT INTO chats (id, user_id, title) VALUES ('c1', 'u1', 'hello')`,
		`INSERT INTO messages (id, chat_id, user_id, content, role) VALUES ('m1', 'c1', 'u1', 'hi', 'user')`,
		`DELETE FROM chats WHERE id = 'c1'`,
	} {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n))
	assert.Zero(t, n)
}

func TestIntegrationSchema_RollbackChats(t *testing.T) {
	ctx, pool := schemaPool(t)

	require.NoError(t, testutil.ApplyMigration(ctx, pool, "000003_chats.down.sql"))
	assert.False(t, hasTable(ctx, t, pool, "chats"))
	assert.False(t, hasTable(ctx, t, pool, "messages"))
}

func TestIntegrationSchema_UpIsRepeatable(t *testing.T) {
	ctx, pool := schemaPool(t)

	ups, err := testutil.MigrationFiles(".up.sql")
	require.NoError(t, err)
	for _, name := range ups {
		assert.NoError(t, testutil.ApplyMigration(ctx, pool, name), name)
	}
}
