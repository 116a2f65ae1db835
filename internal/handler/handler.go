// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/aiiabox/aiiabox/internal/auth"
	"github.com/aiiabox/aiiabox/internal/handler/dto"
)

// Version is reported by the API root.
var Version = "dev"

// Handler serves the API root and the fallback routes.
type Handler struct {
	baseURL string
}

// New creates a new Handler instance.
func New(baseURL string) *Handler {
	return &Handler{baseURL: strings.TrimRight(baseURL, "/")}
}

// Root lists the top-level API resources.
// GET /api/
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"chats":    h.baseURL + "/api/chats/",
		"projects": h.baseURL + "/api/projects/",
		"prompts":  h.baseURL + "/api/prompts/",
		"profile":  h.baseURL + "/api/profile/",
		"settings": h.baseURL + "/api/settings/",
		"token":    h.baseURL + "/api/auth/token/",
		"version":  Version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", fmt.Sprintf("Method %q not allowed.", r.Method))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// writeError writes the standard error body.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, dto.ErrorResponse{Detail: detail, Code: code})
}

func writeValidationError(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Detail: "Invalid input.",
		Code:   "VALIDATION_ERROR",
		Errors: fields,
	})
}

// decodeJSON reads the request body into dst and validates it. An empty
// body decodes as an empty object. On failure the response has been written
// and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var (
			typeErr *json.UnmarshalTypeError
			sizeErr *http.MaxBytesError
		)
		switch {
		case errors.As(err, &sizeErr):
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large.")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			writeValidationError(w, map[string][]string{typeErr.Field: {typeMessage(typeErr)}})
		default:
			writeError(w, http.StatusBadRequest, "PARSE_ERROR", "JSON parse error - "+err.Error())
		}
		return false
	}

	if fields := dto.Validate(dst); fields != nil {
		writeValidationError(w, fields)
		return false
	}
	return true
}

func typeMessage(err *json.UnmarshalTypeError) string {
	switch err.Type.Kind() {
	case reflect.Map, reflect.Struct:
		return fmt.Sprintf("Expected a JSON object but got type %q.", err.Value)
	case reflect.Slice:
		return fmt.Sprintf("Expected a list of items but got type %q.", err.Value)
	case reflect.String:
		return "Not a valid string."
	case reflect.Bool:
		return "Must be a valid boolean."
	}
	return "Incorrect type."
}

// userID returns the authenticated caller.
func userID(r *http.Request) string {
	return auth.UserIDFromContext(r.Context())
}
