// Package redisstate implements the volatile CacheRepository on Redis.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/repository"
)

// RedisCacheRepository is the CacheRepository implementation on a Redis
// client.
type RedisCacheRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCacheRepository creates a RedisCacheRepository. keyPrefix
// namespaces all keys; it defaults to "cc:".
func NewRedisCacheRepository(client *redis.Client, keyPrefix string) *RedisCacheRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisCacheRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return &RedisCacheRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisCacheRepository) sessionKey(handle string) string {
	return fmt.Sprintf("%ssession:%s", r.keyPrefix, handle)
}

func (r *RedisCacheRepository) rateKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

// GetSessionCache returns a cached saved session, or ErrCacheMiss.
func (r *RedisCacheRepository) GetSessionCache(ctx context.Context, handle string) (*domain.SavedSession, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(handle)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get session cache for %q: %w", handle, err)
	}
	var session domain.SavedSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// Corrupt cache entry: report a miss so the caller falls back to
		// the database.
		return nil, repository.ErrCacheMiss
	}
	return &session, nil
}

// SetSessionCache stores a saved session under its handle.
func (r *RedisCacheRepository) SetSessionCache(ctx context.Context, session *domain.SavedSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal session %q: %w", session.Handle, err)
	}
	if err := r.client.Set(ctx, r.sessionKey(session.Handle), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set session cache for %q: %w", session.Handle, err)
	}
	return nil
}

// IncrementWindow bumps a rate counter and refreshes its window expiry in
// one pipeline.
func (r *RedisCacheRepository) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, r.rateKey(key))
	pipe.Expire(ctx, r.rateKey(key), window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: rate-limit pipeline failed for %q: %w", key, err)
	}
	return incr.Val(), nil
}
