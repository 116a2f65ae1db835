package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aiiabox/aiiabox/internal/model"
)

const (
	authCachePrefix      = "auth:ctx:"
	authTokenIndexPrefix = "auth:token:"
)

// authEntry is the JSON form of a model.AuthContext held under
// auth:ctx:<cache key>. auth:token:<token id> is a set of the cache keys
// issued for that token.
type authEntry struct {
	TokenID string `json:"tid"`
	Prefix  string `json:"pfx"`
	UserID  string `json:"uid"`
	User    string `json:"usr"`
	Staff   bool   `json:"stf,omitempty"`
	Tier    string `json:"tier"`
}

func newAuthEntry(a *model.AuthContext) authEntry {
	return authEntry{
		TokenID: a.TokenID,
		Prefix:  a.TokenPrefix,
		UserID:  a.UserID,
		User:    a.Username,
		Staff:   a.IsStaff,
		Tier:    a.RateLimitTier,
	}
}

func (e authEntry) authContext() *model.AuthContext {
	return &model.AuthContext{
		TokenID:       e.TokenID,
		TokenPrefix:   e.Prefix,
		UserID:        e.UserID,
		Username:      e.User,
		IsStaff:       e.Staff,
		RateLimitTier: e.Tier,
	}
}

// GetAuthContext returns the auth context cached under cacheKey, or nil on
// a miss. Unreadable entries are dropped and reported as a miss.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth context: %w", err)
	}

	var e authEntry
	if err := json.Unmarshal(data, &e); err != nil || e.TokenID == "" {
		c.client.Del(ctx, key)
		return nil, nil
	}
	return e.authContext(), nil
}

// SetAuthContext caches a for the auth TTL and indexes cacheKey under the
// token so InvalidateToken can find it.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, a *model.AuthContext) error {
	data, err := json.Marshal(newAuthEntry(a))
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	index := authTokenIndexPrefix + a.TokenID
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, authCachePrefix+cacheKey, data, c.authTTL)
		pipe.SAdd(ctx, index, cacheKey)
		pipe.Expire(ctx, index, c.authTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache auth context: %w", err)
	}
	return nil
}

// InvalidateToken drops every auth context cached for tokenID. Call it
// after a token is revoked or rotated.
func (c *Cache) InvalidateToken(ctx context.Context, tokenID string) error {
	index := authTokenIndexPrefix + tokenID

	members, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("read token index: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, authCachePrefix+m)
	}
	keys = append(keys, index)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}
