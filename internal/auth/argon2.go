// Package auth hashes passwords and API tokens and carries the
// authenticated caller through request contexts.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters encoded into every hash.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

var (
	// PasswordParams is used for user passwords (OWASP minimum, 64 MiB).
	PasswordParams = Params{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

	// TokenParams is used for API tokens. Tokens carry 160 bits of entropy,
	// so a lighter cost keeps cache-miss authentication fast.
	TokenParams = Params{Time: 2, Memory: 19 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// HashPassword creates an Argon2id hash of a user password in PHC format.
func HashPassword(password string) (string, error) {
	return Hash(password, PasswordParams)
}

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	params Params
	salt   []byte
	key    []byte
}

func (h phc) String() string {
	b64 := base64.RawStdEncoding.EncodeToString
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads, b64(h.salt), b64(h.key))
}

func parsePHC(encoded string) (phc, error) {
	var h phc
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return h, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, ErrInvalidHash
	}
	if version != argon2.Version {
		return h, ErrIncompatibleVersion
	}
	p := &h.params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return h, ErrInvalidHash
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, ErrInvalidHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, ErrInvalidHash
	}
	p.KeyLen, p.SaltLen = uint32(len(h.key)), len(h.salt)
	return h, nil
}

// Hash derives an Argon2id key from secret with a fresh random salt and
// returns it PHC encoded.
func Hash(secret string, p Params) (string, error) {
	h := phc{params: p, salt: make([]byte, p.SaltLen)}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h.key = argon2.IDKey([]byte(secret), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return h.String(), nil
}

// VerifyPassword checks secret against a PHC encoded hash using the cost
// recorded in the hash, so it serves password and token hashes alike.
func VerifyPassword(secret, encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	p := h.params
	got := argon2.IDKey([]byte(secret), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// dummyHash is verified against when a login names an unknown user, so the
// response time does not reveal whether the account exists.
var dummyHash, _ = HashPassword("aiiabox-dummy-password")

// DummyVerify burns the same CPU as a real password check.
func DummyVerify(password string) {
	_, _ = VerifyPassword(password, dummyHash)
}

// QuickHash derives auth cache keys from raw tokens. Never use it for
// stored credentials.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}
