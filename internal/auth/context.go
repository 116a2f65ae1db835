package auth

import (
	"context"

	"github.com/aiiabox/aiiabox/internal/model"
)

type authKey struct{}

// ContextWithAuth attaches the authenticated caller to ctx.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, ac)
}

// AuthFromContext returns the caller set by the auth middleware, or nil on
// unauthenticated routes.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(authKey{}).(*model.AuthContext)
	return ac
}

// UserIDFromContext returns the caller's user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if ac := AuthFromContext(ctx); ac != nil {
		return ac.UserID
	}
	return ""
}
