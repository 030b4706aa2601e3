package cache

import (
	"context"
	"errors"
	"time"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// ErrNotFound is returned by a Store when a key has no entry.
var ErrNotFound = errors.New("cache: entry not found")

// Store is the exact-match index behind a Cache.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (models.CacheEntry, error)
	Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
