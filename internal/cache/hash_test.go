package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashIP(t *testing.T) {
	seen := map[string]string{}
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "::1", "2001:db8::7334", ""} {
		h := hashIP(ip)
		assert.Len(t, h, 16, ip)
		assert.Equal(t, h, hashIP(ip), "stable for %q", ip)
		assert.NotContains(t, h, ".")

		if prev, dup := seen[h]; dup {
			t.Fatalf("%q and %q share hash %s", prev, ip, h)
		}
		seen[h] = ip
	}
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(t.Context(), "not a url")
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	c := newCache([]Option{WithAuthTTL(0), WithPoolSize(-1)})
	assert.Equal(t, defaultAuthTTL, c.authTTL)
	assert.Equal(t, defaultPoolSize, c.poolSize)

	c = newCache([]Option{WithAuthTTL(30 * time.Second), WithPoolSize(4)})
	assert.Equal(t, 30*time.Second, c.authTTL)
	assert.Equal(t, 4, c.poolSize)
}
