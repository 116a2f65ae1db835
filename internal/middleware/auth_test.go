package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	mu       sync.Mutex
	tokens   []*model.TokenWithUser
	err      error
	lookups  int
	lastUsed chan string
}

func (f *fakeTokenStore) GetTokensByPrefix(_ context.Context, prefix string) ([]*model.TokenWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.TokenWithUser
	for _, t := range f.tokens {
		if t.KeyPrefix == prefix {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokenStore) UpdateTokenLastUsed(_ context.Context, id string) error {
	if f.lastUsed != nil {
		f.lastUsed <- id
	}
	return nil
}

type fakeAuthCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
}

func newFakeAuthCache() *fakeAuthCache {
	return &fakeAuthCache{entries: make(map[string]*model.AuthContext)}
}

func (f *fakeAuthCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key], nil
}

func (f *fakeAuthCache) SetAuthContext(_ context.Context, key string, a *model.AuthContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = a
	return nil
}

func newAuthFixture(t *testing.T) (string, *fakeTokenStore) {
	t.Helper()
	gen, err := auth.GenerateToken()
	require.NoError(t, err)

	store := &fakeTokenStore{
		tokens: []*model.TokenWithUser{{
			Token: model.Token{
				ID:            "tok-1",
				UserID:        "user-1",
				KeyPrefix:     gen.Prefix,
				KeyHash:       gen.Hash,
				RateLimitTier: model.TierFree,
			},
			Username: "alice",
			IsActive: true,
		}},
		lastUsed: make(chan string, 4),
	}
	return gen.Plaintext, store
}

func serveAuth(cfg AuthConfig, header string) (*httptest.ResponseRecorder, *model.AuthContext) {
	var seen *model.AuthContext
	handler := Auth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func testAuthConfig(store TokenStore, cache AuthCache, rec metrics.Recorder) AuthConfig {
	return AuthConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tokens:      store,
		Cache:       cache,
		Metrics:     rec,
		MinDuration: -1,
	}
}

func TestAuth_ValidTokenSchemes(t *testing.T) {
	key, store := newAuthFixture(t)

	for _, scheme := range []string{"Token", "token", "Bearer"} {
		t.Run(scheme, func(t *testing.T) {
			rec, seen := serveAuth(testAuthConfig(store, newFakeAuthCache(), nil), scheme+" "+key)

			require.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, seen)
			assert.Equal(t, "user-1", seen.UserID)
			assert.Equal(t, "alice", seen.Username)
			assert.Equal(t, "tok-1", seen.TokenID)

			select {
			case id := <-store.lastUsed:
				assert.Equal(t, "tok-1", id)
			case <-time.After(time.Second):
				t.Fatal("last_used_at was not updated")
			}
		})
	}
}

func TestAuth_CacheHitSkipsStore(t *testing.T) {
	key, store := newAuthFixture(t)
	cache := newFakeAuthCache()
	recorder := metrics.NewInMemory()
	cfg := testAuthConfig(store, cache, recorder)

	rec, _ := serveAuth(cfg, "Token "+key)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, seen := serveAuth(cfg, "Token "+key)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)

	assert.Equal(t, 1, store.lookups)
	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.AuthAttempts["success"])
	assert.Equal(t, uint64(1), snap.AuthAttempts["cache_hit"])
}

func TestAuth_Failures(t *testing.T) {
	key, store := newAuthFixture(t)
	otherPrefix := flipHex(key[:8]) + key[8:]
	wrongSecret := key[:39] + flipHex(key[39:])

	testCases := []struct {
		name       string
		header     string
		wantReason string
	}{
		{"missing header", "", "missing_token"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "missing_token"},
		{"scheme only", "Token", "invalid_format"},
		{"too short", "Token abc", "invalid_format"},
		{"uppercase hex", "Token " + "ABCDEF01" + key[8:], "invalid_format"},
		{"unknown prefix", "Token " + otherPrefix, "invalid_token"},
		{"wrong secret same prefix", "Token " + wrongSecret, "invalid_token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := metrics.NewInMemory()
			rec, seen := serveAuth(testAuthConfig(store, newFakeAuthCache(), recorder), tc.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
			assert.Equal(t, "Token", rec.Header().Get("WWW-Authenticate"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, msgUnauthorized, body["detail"])
			assert.Equal(t, "UNAUTHORIZED", body["code"])
			assert.Equal(t, uint64(1), recorder.Snapshot().AuthAttempts[tc.wantReason])
		})
	}
}

func TestAuth_StoreErrorIsUnauthorized(t *testing.T) {
	key, store := newAuthFixture(t)
	store.err = errors.New("db down")

	rec, _ := serveAuth(testAuthConfig(store, newFakeAuthCache(), nil), "Token "+key)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_FailurePadding(t *testing.T) {
	_, store := newAuthFixture(t)
	cfg := testAuthConfig(store, newFakeAuthCache(), nil)
	cfg.MinDuration = 50 * time.Millisecond

	start := time.Now()
	rec, _ := serveAuth(cfg, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// flipHex returns s with every hex digit changed.
func flipHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '0' {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}
