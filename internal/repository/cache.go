package repository

import (
	"context"
	"time"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
)

// CacheRepository is the volatile side store, implemented on Redis. It
// caches saved-session blobs so repeated loads skip the database, and
// keeps the sliding counters behind HTTP rate limiting.
type CacheRepository interface {
	// GetSessionCache returns a cached saved session, or ErrCacheMiss.
	GetSessionCache(ctx context.Context, handle string) (*domain.SavedSession, error)

	// SetSessionCache stores a saved session under its handle with the
	// given TTL. A zero TTL means no expiry.
	SetSessionCache(ctx context.Context, session *domain.SavedSession, ttl time.Duration) error

	// IncrementWindow atomically bumps a rate-limit counter, refreshing
	// its expiry window, and returns the new count.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}
