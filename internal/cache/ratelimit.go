package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitTokenPrefix = "throttle:token:"
	rateLimitIPPrefix    = "throttle:ip:"

	// Idle buckets are dropped once they would have refilled anyway.
	rateLimitTokenTTL = 2 * time.Minute
	rateLimitIPTTL    = time.Minute
)

// RateLimitResult is the outcome of one throttle check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucketScript refills and drains a token bucket in one round trip.
// ARGV: refill per millisecond, capacity, now in ms, ttl in ms.
// Returns {allowed, retry_after_ms, whole tokens left}.
var bucketScript = redis.NewScript(`
local per_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'level', 'at')
local level = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now
if now > at then
	level = math.min(capacity, level + (now - at) * per_ms)
end

local allowed, wait = 0, 0
if level >= 1 then
	level = level - 1
	allowed = 1
else
	wait = math.ceil((1 - level) / per_ms)
end

redis.call('HSET', KEYS[1], 'level', level, 'at', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {allowed, wait, math.floor(level)}
`)

func unlimited(burst int, window time.Duration) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(window),
	}
}

// CheckTokenRateLimit spends one request from tokenID's bucket. A zero
// ratePerMinute disables the limit.
func (c *Cache) CheckTokenRateLimit(ctx context.Context, tokenID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return unlimited(burst, time.Minute), nil
	}
	perSecond := float64(ratePerMinute) / 60
	return c.spend(ctx, rateLimitTokenPrefix+tokenID, perSecond, burst, rateLimitTokenTTL), nil
}

// CheckIPRateLimit spends one request from ip's bucket within scope. Only
// a hash of the address is written to Redis.
func (c *Cache) CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return unlimited(burst, time.Second), nil
	}
	return c.spend(ctx, rateLimitIPPrefix+scope+":"+hashIP(ip), ratePerSecond, burst, rateLimitIPTTL), nil
}

// spend fails open: a Redis outage must not take the API down with it.
func (c *Cache) spend(ctx context.Context, key string, perSecond float64, burst int, ttl time.Duration) *RateLimitResult {
	now := time.Now()
	out, err := bucketScript.Run(ctx, c.client, []string{key},
		perSecond/1000, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil || len(out) != 3 {
		return unlimited(burst, time.Minute)
	}

	return &RateLimitResult{
		Allowed:    out[0] == 1,
		Remaining:  out[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / perSecond)),
		RetryAfter: time.Duration(out[1]) * time.Millisecond,
	}
}

// hashIP keys IP buckets by the first 8 bytes of the address's SHA-256.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
