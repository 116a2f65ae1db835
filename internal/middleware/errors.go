package middleware

import (
	"encoding/json"
	"net/http"
)

// Messages shared with the handler layer so clients see one vocabulary.
const (
	msgUnauthorized = "Invalid or missing authentication token."
	msgForbidden    = "You do not have permission to perform this action."
)

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// writeError writes the standard JSON error body.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: detail, Code: code})
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Token")
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msgUnauthorized)
}
