package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/insight-scraper/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache wraps the Redis client. It holds the scrape freshness
// cache: batch mode skips targets scraped within the TTL instead of
// spending an account on them.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client. Used by tests with
// miniredis.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func scrapeKey(handle string) string {
	return fmt.Sprintf("scrape:%s", handle)
}

// MarkScraped records a completed scrape for a target. The payload is
// the serialized (profile, tweets) tuple; it expires after ttl.
func (r *RedisCache) MarkScraped(ctx context.Context, handle, payload string, ttl time.Duration) error {
	if err := r.client.Set(ctx, scrapeKey(handle), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache scrape for %s: %w", handle, err)
	}
	return nil
}

// GetFresh returns the cached payload for a target scraped within the
// freshness TTL. ok is false when the target is stale or unknown.
func (r *RedisCache) GetFresh(ctx context.Context, handle string) (payload string, ok bool, err error) {
	payload, err = r.client.Get(ctx, scrapeKey(handle)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read scrape cache for %s: %w", handle, err)
	}
	return payload, true, nil
}

// Invalidate drops the freshness marker for a target
func (r *RedisCache) Invalidate(ctx context.Context, handle string) error {
	if err := r.client.Del(ctx, scrapeKey(handle)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate scrape cache for %s: %w", handle, err)
	}
	return nil
}
