package redis

// Package redis provides Redis-based adapters for ssogate.

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudpivot/ssogate/internal/ports"
)

// TokenCache caches credential-record validity so the per-request revocation
// check usually avoids a database round trip. Keys carry the credential TTL,
// so Redis expires entries in step with the tokens themselves. A miss means
// "unknown", not "revoked"; callers fall back to the token store.
type TokenCache struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenCache creates a new Redis-backed token cache.
func NewTokenCache(client redis.UniversalClient) *TokenCache {
	return &TokenCache{client: client, prefix: "token:"}
}

// NewTokenCacheWithPrefix creates a token cache with a custom key prefix.
func NewTokenCacheWithPrefix(client redis.UniversalClient, prefix string) *TokenCache {
	return &TokenCache{client: client, prefix: prefix}
}

// MarkValid records the credential as live for its remaining lifetime.
func (c *TokenCache) MarkValid(ctx context.Context, value string, ttl time.Duration) error {
	if value == "" {
		return errors.New("credential value cannot be empty")
	}
	if ttl <= 0 {
		// Already expired; nothing worth caching.
		return nil
	}
	return c.client.Set(ctx, c.prefix+value, "1", ttl).Err()
}

// Invalidate removes the cache entry at logout.
func (c *TokenCache) Invalidate(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+value).Err()
}

// IsValid reports whether the credential is known-live. (false, nil) is a
// cache miss, not a revocation verdict.
func (c *TokenCache) IsValid(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	_, err := c.client.Get(ctx, c.prefix+value).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ ports.TokenCache = (*TokenCache)(nil)
