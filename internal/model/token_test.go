package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitForTier(t *testing.T) {
	assert.Equal(t, TierLimit{PerMinute: 120, Burst: 20}, LimitForTier(TierFree))
	assert.Equal(t, TierLimit{PerMinute: 600, Burst: 50}, LimitForTier(TierPro))
	assert.Zero(t, LimitForTier(TierUnlimited).PerMinute)
	assert.Equal(t, LimitForTier(TierFree), LimitForTier("platinum"))
	assert.Equal(t, LimitForTier(TierFree), LimitForTier(""))
}

func TestToken_IsRevoked(t *testing.T) {
	tok := &Token{}
	assert.False(t, tok.IsRevoked())

	now := time.Now()
	tok.RevokedAt = &now
	assert.True(t, tok.IsRevoked())
}
