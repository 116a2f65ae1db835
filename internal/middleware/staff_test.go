package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/model"
)

func TestRequireStaff(t *testing.T) {
	testCases := []struct {
		name       string
		authCtx    *model.AuthContext
		wantStatus int
		wantBody   string
	}{
		{
			name:       "staff allowed",
			authCtx:    &model.AuthContext{UserID: "u1", IsStaff: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "regular user forbidden",
			authCtx:    &model.AuthContext{UserID: "u2"},
			wantStatus: http.StatusForbidden,
			wantBody:   msgForbidden,
		},
		{
			name:       "unauthenticated rejected",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `"code":"UNAUTHORIZED"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireStaff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/tokens/", nil)
			if tc.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tc.authCtx))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantBody != "" && !strings.Contains(rec.Body.String(), tc.wantBody) {
				t.Errorf("body = %s, want to contain %s", rec.Body.String(), tc.wantBody)
			}
		})
	}
}
