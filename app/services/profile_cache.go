package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// ProfileCache caches billing profiles for the credit gate fast path.
// A cache miss or an expired entry is never an error; callers fall back to
// the billing service.
type ProfileCache interface {
	Get(ctx context.Context, tenantID string) (*models.CreditProfile, error)
	Set(ctx context.Context, tenantID string, profile *models.CreditProfile, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string) error
}

// RedisProfileCache implements ProfileCache on Redis
type RedisProfileCache struct {
	client *redis.Client
}

// NewRedisProfileCache creates a new Redis-backed profile cache
func NewRedisProfileCache(client *redis.Client) ProfileCache {
	return &RedisProfileCache{client: client}
}

func profileCacheKey(tenantID string) string {
	return fmt.Sprintf("%s:%s", utils.CreditProfileCacheKey, tenantID)
}

func (c *RedisProfileCache) Get(ctx context.Context, tenantID string) (*models.CreditProfile, error) {
	raw, err := c.client.Get(ctx, profileCacheKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached profile: %w", err)
	}

	var profile models.CreditProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profile: %w", err)
	}
	return &profile, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, tenantID string, profile *models.CreditProfile, ttl time.Duration) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, profileCacheKey(tenantID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Delete(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, profileCacheKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached profile: %w", err)
	}
	return nil
}

// MemoryProfileCache implements ProfileCache in process memory, for tests and
// single-node deployments without Redis
type MemoryProfileCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	profile   models.CreditProfile
	expiresAt time.Time
}

// NewMemoryProfileCache creates a new in-memory profile cache
func NewMemoryProfileCache() *MemoryProfileCache {
	return &MemoryProfileCache{
		entries: make(map[string]memoryCacheEntry),
	}
}

func (c *MemoryProfileCache) Get(ctx context.Context, tenantID string) (*models.CreditProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tenantID]
	if !ok || utils.UTCNow().After(entry.expiresAt) {
		return nil, nil
	}
	profile := entry.profile
	return &profile, nil
}

func (c *MemoryProfileCache) Set(ctx context.Context, tenantID string, profile *models.CreditProfile, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[tenantID] = memoryCacheEntry{
		profile:   *profile,
		expiresAt: utils.UTCNow().Add(ttl),
	}
	return nil
}

func (c *MemoryProfileCache) Delete(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, tenantID)
	return nil
}
