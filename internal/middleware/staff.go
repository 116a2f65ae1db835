package middleware

import (
	"net/http"

	"github.com/aiiabox/aiiabox/internal/auth"
)

// RequireStaff rejects requests whose authenticated user is not staff.
// Must be applied after Auth middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			writeAuthError(w)
			return
		}
		if !authCtx.IsStaff {
			writeError(w, http.StatusForbidden, "FORBIDDEN", msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
