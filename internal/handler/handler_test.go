package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/model"
)

const testBaseURL = "https://api.example.com"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser authenticates every request as userID.
func withUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.ContextWithAuth(r.Context(), &model.AuthContext{UserID: userID, Username: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_Root(t *testing.T) {
	h := New(testBaseURL + "/")

	rec := httptest.NewRecorder()
	h.Root(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, testBaseURL+"/api/chats/", body["chats"])
	assert.Equal(t, testBaseURL+"/api/auth/token/", body["token"])
}

func TestHandler_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	New(testBaseURL).NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "Not found.", body.Detail)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(testBaseURL).MethodNotAllowed(rec, httptest.NewRequest(http.MethodPut, "/api/chats/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, `Method "PUT" not allowed.`, decodeError(t, rec).Detail)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantCode   string
		wantErrors map[string][]string
	}{
		{name: "valid", body: `{"username":"alice","password":"pw"}`, wantOK: true},
		{name: "syntax", body: `{"username":`, wantStatus: http.StatusBadRequest, wantCode: "PARSE_ERROR"},
		{name: "wrong type", body: `{"username":5,"password":"pw"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
			wantErrors: map[string][]string{"username": {"Not a valid string."}}},
		{name: "missing fields", body: ``, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
			wantErrors: map[string][]string{"username": {"This field is required."}, "password": {"This field is required."}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			var req dto.LoginRequest
			ok := decodeJSON(rec, jsonRequest(http.MethodPost, "/", test.body), &req)

			require.Equal(t, test.wantOK, ok)
			if test.wantOK {
				assert.Equal(t, "alice", req.Username)
				return
			}
			assert.Equal(t, test.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, test.wantCode, body.Code)
			if test.wantErrors != nil {
				assert.Equal(t, test.wantErrors, body.Errors)
			}
		})
	}
}

func TestDecodeJSON_ObjectField(t *testing.T) {
	rec := httptest.NewRecorder()
	var req dto.ChatRequest
	ok := decodeJSON(rec, jsonRequest(http.MethodPost, "/", `{"title":"x","metadata":[1,2]}`), &req)

	require.False(t, ok)
	body := decodeError(t, rec)
	assert.Equal(t, []string{`Expected a JSON object but got type "array".`}, body.Errors["metadata"])
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/", `{"username":"`+strings.Repeat("a", 100)+`"}`)
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dst dto.LoginRequest
	require.False(t, decodeJSON(rec, req, &dst))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecodeJSON_Nullable(t *testing.T) {
	tests := []struct {
		body    string
		wantSet bool
		wantNil bool
	}{
		{`{}`, false, true},
		{`{"project":null}`, true, true},
		{`{"project":"p1"}`, true, false},
	}

	for _, test := range tests {
		t.Run(test.body, func(t *testing.T) {
			var req dto.ChatRequest
			require.True(t, decodeJSON(httptest.NewRecorder(), jsonRequest(http.MethodPatch, "/", test.body), &req))
			assert.Equal(t, test.wantSet, req.Project.Set)
			assert.Equal(t, test.wantNil, req.Project.Value == nil)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}

// serve runs req through h with the caller authenticated as userID.
func serve(h http.Handler, userID string, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	withUser(userID, h).ServeHTTP(rec, req)
	return rec
}
