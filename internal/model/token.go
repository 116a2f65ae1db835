package model

import "time"

// Throttle tiers a token can be issued with. New tokens get TierFree.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// TierLimit is a token bucket size. A zero PerMinute means no limit.
type TierLimit struct {
	PerMinute int
	Burst     int
}

var tierLimits = map[string]TierLimit{
	TierFree:      {PerMinute: 120, Burst: 20},
	TierPro:       {PerMinute: 600, Burst: 50},
	TierUnlimited: {},
}

// LimitForTier returns the bucket for tier. Unknown tiers fall back to
// TierFree.
func LimitForTier(tier string) TierLimit {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// Token is an API authentication token. A user has at most one active token.
type Token struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	KeyPrefix     string     `json:"key_prefix"`
	KeyHash       string     `json:"-"`
	RateLimitTier string     `json:"rate_limit_tier"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsRevoked returns true if the token has been revoked.
func (t *Token) IsRevoked() bool {
	return t.RevokedAt != nil
}

// TokenWithUser joins a token with the owner fields needed for authentication
// and staff listings.
type TokenWithUser struct {
	Token
	Username     string
	IsStaff      bool
	IsActive     bool
	UserJoinedAt time.Time
}

// AuthContext is the caller identity the auth middleware resolves from a
// token and caches in Redis.
type AuthContext struct {
	TokenID       string
	TokenPrefix   string
	UserID        string
	Username      string
	IsStaff       bool
	RateLimitTier string
}
