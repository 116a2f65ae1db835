package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Token format: 40 lowercase hex characters (20 random bytes).
const (
	TokenLen       = 40
	TokenPrefixLen = 8
	MinPasswordLen = 8
)

var (
	// ErrInvalidTokenFormat indicates the token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid token format")
	// ErrMissingToken indicates no credentials were supplied.
	ErrMissingToken = errors.New("missing token")

	tokenFormatRegex = regexp.MustCompile(`^[a-f0-9]{40}$`)
)

// GeneratedToken contains the parts of a newly generated token.
type GeneratedToken struct {
	Plaintext string // Full key (show once only)
	Hash      string // Argon2id hash for storage
	Prefix    string // Lookup prefix
}

// GenerateToken creates a new API token.
func GenerateToken() (*GeneratedToken, error) {
	b := make([]byte, TokenLen/2)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	plaintext := hex.EncodeToString(b)

	hash, err := Hash(plaintext, TokenParams)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    plaintext[:TokenPrefixLen],
	}, nil
}

// ParseToken validates the token and returns its lookup prefix.
func ParseToken(key string) (string, error) {
	if !tokenFormatRegex.MatchString(key) {
		return "", ErrInvalidTokenFormat
	}
	return key[:TokenPrefixLen], nil
}

// Preview renders a token prefix for display, e.g. "3f9a07c1...".
func Preview(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "..."
}

// ExtractToken reads the token from an Authorization header value.
// Accepts "Token <key>" and "Bearer <key>" with a case-insensitive scheme.
func ExtractToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, key, ok := strings.Cut(header, " ")
	if !ok {
		return "", ErrInvalidTokenFormat
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}

	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", ErrInvalidTokenFormat
	}
	return key, nil
}

// ValidatePassword applies the password policy and returns a user-facing
// message for each violated rule.
func ValidatePassword(password, username string) []string {
	var problems []string
	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLen))
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		problems = append(problems, "This password is entirely numeric.")
	}
	if username != "" && strings.EqualFold(password, username) {
		problems = append(problems, "The password is too similar to the username.")
	}
	return problems
}
