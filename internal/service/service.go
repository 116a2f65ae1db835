// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/aiiabox/aiiabox/internal/repository"
)

// Service errors.
var (
	ErrChatNotFound          = errors.New("chat not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrPromptNotFound        = errors.New("prompt template not found")
	ErrCompletionJobNotFound = errors.New("completion job not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrTokenNotFound         = errors.New("token not found")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrSettingsNotFound      = errors.New("settings not found")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPage        = errors.New("invalid page")
	ErrStorageDisabled    = errors.New("object storage is not configured")
	ErrLLMDisabled        = errors.New("llm completions are not enabled")
)

// Field validation messages.
const (
	msgRequired      = "This field is required."
	msgBlank         = "This field may not be blank."
	msgMaxLength     = "Ensure this field has no more than %d characters."
	msgInvalidChoice = "\"%s\" is not a valid choice."
	msgDoesNotExist  = "Invalid pk \"%s\" - object does not exist."
	msgNotObject     = "Expected a JSON object."
)

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldErrors accumulates validation messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) addf(field, format string, args ...any) {
	f.add(field, fmt.Sprintf(format, args...))
}

// err returns nil when nothing was recorded.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

// cleanText trims s and records blank or over-long values under field.
// required controls whether an empty value is an error.
func cleanText(errs fieldErrors, field, s string, maxLen int, required bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			errs.add(field, msgBlank)
		}
		return s
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		errs.addf(field, msgMaxLength, maxLen)
	}
	return s
}

// ListParams selects one page of a listing.
type ListParams struct {
	Page     int
	PageSize int
}

// ListResult is one page of items and the total across all pages.
type ListResult[T any] struct {
	Items []T
	Total int64
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize applies the default page and clamps the page size.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p ListParams) repoPage() repository.Page {
	p = p.Normalize()
	return repository.Page{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

// pageResult rejects pages past the end; the first page is always valid.
func pageResult[T any](p ListParams, items []T, total int64) (*ListResult[T], error) {
	p = p.Normalize()
	if p.Page > 1 && int64((p.Page-1)*p.PageSize) >= total {
		return nil, ErrInvalidPage
	}
	if items == nil {
		items = []T{}
	}
	return &ListResult[T]{Items: items, Total: total}, nil
}

func newID() string {
	return ulid.Make().String()
}
