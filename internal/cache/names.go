package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"recipeshare/internal/repository"
)

const (
	// NameCachePrefix is the key prefix for cached display names
	NameCachePrefix = "profile:name:"

	// DefaultNameCacheTTL bounds how stale a shared name can get
	DefaultNameCacheTTL = 24 * time.Hour
)

// NameCache is a cross-process store of resolved display names. It sits
// behind the per-panel cache, so a name resolved by one panel is a cache hit
// for every other panel and process.
type NameCache interface {
	// GetNames returns the cached names among userIDs. Missing ids are absent
	// from the map; a cached empty string means "no display name".
	GetNames(ctx context.Context, userIDs []string) (map[string]string, error)

	// SetNames caches the given names.
	SetNames(ctx context.Context, names map[string]string) error
}

// RedisNameCache implements NameCache with plain string keys.
type RedisNameCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNameCache creates a NameCache backed by Redis.
func NewNameCache(client *redis.Client, ttl time.Duration) *RedisNameCache {
	if ttl <= 0 {
		ttl = DefaultNameCacheTTL
	}
	return &RedisNameCache{client: client, ttl: ttl}
}

func nameKey(userID string) string {
	return NameCachePrefix + userID
}

// GetNames reads all ids with a single MGET.
func (c *RedisNameCache) GetNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = nameKey(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("[NameCache] GetNames FAILED: ids=%d err=%v", len(userIDs), err)
		return nil, fmt.Errorf("get names: %w", err)
	}

	names := make(map[string]string, len(userIDs))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			names[userIDs[i]] = s
		}
	}
	log.Printf("[NameCache] GetNames OK: ids=%d hits=%d", len(userIDs), len(names))
	return names, nil
}

// SetNames writes every name in one pipeline, each with the cache TTL.
func (c *RedisNameCache) SetNames(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, name := range names {
		pipe.Set(ctx, nameKey(id), name, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[NameCache] SetNames FAILED: ids=%d err=%v", len(names), err)
		return fmt.Errorf("set names: %w", err)
	}
	log.Printf("[NameCache] SetNames OK: ids=%d ttl=%v", len(names), c.ttl)
	return nil
}

// CachedProfileRepository serves display names from a NameCache and falls back
// to the wrapped repository on a miss. Cache failures degrade to direct lookups.
type CachedProfileRepository struct {
	next  repository.ProfileRepository
	cache NameCache
}

func NewCachedProfileRepository(next repository.ProfileRepository, cache NameCache) *CachedProfileRepository {
	return &CachedProfileRepository{next: next, cache: cache}
}

func (r *CachedProfileRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	if names, err := r.cache.GetNames(ctx, []string{userID}); err == nil {
		if name, ok := names[userID]; ok {
			return name, nil
		}
	}

	name, err := r.next.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := r.cache.SetNames(ctx, map[string]string{userID: name}); err != nil {
		log.Printf("[NameCache] store after miss FAILED: user=%s err=%v", userID, err)
	}
	return name, nil
}
