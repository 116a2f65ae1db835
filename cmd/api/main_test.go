package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://aiia:s3cret@db:5432/aiia?sslmode=disable", "postgres://aiia@db:5432/aiia?sslmode=disable"},
		{"redis://:s3cret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"redis://cache:6379", "redis://cache:6379"},
		{"://bad", "[redacted]"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, redactURL(test.in), test.in)
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://aiia:s3cret@db:5432/aiia"
	err := errors.New("failed to connect to `" + dsn + "`: password=s3cret rejected")

	got := sanitizeError(err, dsn)
	assert.NotContains(t, got, "s3cret")
	assert.Contains(t, got, "postgres://aiia@db:5432/aiia")
	assert.Contains(t, got, "password=redacted")
	assert.Empty(t, sanitizeError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
