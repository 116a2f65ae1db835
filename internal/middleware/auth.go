package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/model"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
	// lastUsedTimeout bounds the detached last_used_at update.
	lastUsedTimeout = 5 * time.Second
)

// TokenStore looks up token candidates during authentication.
type TokenStore interface {
	GetTokensByPrefix(ctx context.Context, prefix string) ([]*model.TokenWithUser, error)
	UpdateTokenLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified auth contexts keyed by a fast hash of the token.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenStore
	Cache   AuthCache
	Metrics metrics.Recorder
	// MinDuration overrides minAuthDuration; negative disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It extracts the token from the Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	minDuration := minAuthDuration
	if cfg.MinDuration != 0 {
		minDuration = cfg.MinDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			authCtx, reason := authenticate(r, cfg)
			if authCtx == nil {
				padDuration(start, minDuration)
				cfg.Metrics.IncAuthAttempt(reason)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Metrics.IncAuthAttempt(reason)
			cfg.Logger.Debug("authentication successful",
				slog.String("token_prefix", authCtx.TokenPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", reason == "cache_hit"),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the request's token. On failure the returned reason
// is one of missing_token, invalid_format or invalid_token.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, string) {
	key, err := auth.ExtractToken(r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return nil, "missing_token"
		}
		return nil, "invalid_format"
	}

	prefix, err := auth.ParseToken(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.QuickHash(key)
	if cached, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); cached != nil {
		return cached, "cache_hit"
	}

	candidates, err := cfg.Tokens.GetTokensByPrefix(r.Context(), prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return nil, "invalid_token"
	}

	// Prefix collisions are possible, so every candidate is verified.
	var matched *model.TokenWithUser
	for _, c := range candidates {
		if ok, err := auth.VerifyPassword(key, c.KeyHash); err == nil && ok {
			matched = c
			break
		}
	}
	if matched == nil {
		if len(candidates) == 0 {
			auth.DummyVerify(key)
		}
		return nil, "invalid_token"
	}

	authCtx := &model.AuthContext{
		TokenID:       matched.ID,
		TokenPrefix:   matched.KeyPrefix,
		UserID:        matched.UserID,
		Username:      matched.Username,
		IsStaff:       matched.IsStaff,
		RateLimitTier: matched.RateLimitTier,
	}

	if err := cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx); err != nil {
		cfg.Logger.Warn("failed to cache auth context", slog.String("error", err.Error()))
	}

	tokenID := matched.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), lastUsedTimeout)
		defer cancel()
		if err := cfg.Tokens.UpdateTokenLastUsed(ctx, tokenID); err != nil {
			cfg.Logger.Warn("failed to update token last_used_at", slog.String("error", err.Error()))
		}
	}()

	return authCtx, "success"
}

// padDuration sleeps until d has elapsed since start so that failures take
// a uniform amount of time.
func padDuration(start time.Time, d time.Duration) {
	if remaining := d - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
	}
}
