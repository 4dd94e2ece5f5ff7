// Package catalogcache caches provider catalog responses (avatars, voices,
// credit balance) in Redis so most catalog reads never touch the upstream
// API or consume its quota.
package catalogcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keys. Kept in one place so invalidation stays greppable.
const (
	KeyAvatars = "catalog:avatars"
	KeyVoices  = "catalog:voices"
	KeyCredits = "catalog:credits"
)

// Redis implements domain.CatalogCache on a go-redis client.
type Redis struct {
	client *redis.Client
}

// New constructs a cache against the given address.
func New(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client) *Redis { return &Redis{client: client} }

// Get unmarshals the cached value into v. Returns (false, nil) on miss.
func (r *Redis) Get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("op=cache.get key=%s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("op=cache.get key=%s: decode: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("op=cache.set key=%s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.set key=%s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// Noop is a CatalogCache that never hits; used when Redis is not
// configured. Catalog endpoints then pass through to the provider.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set discards the value.
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }
