package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates a MemoryStore. A positive cleanupInterval starts a
// janitor that purges expired items in the background.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns the entry stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (models.CacheEntry, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return models.CacheEntry{}, ErrNotFound
	}
	entry, ok := v.(models.CacheEntry)
	if !ok {
		return models.CacheEntry{}, fmt.Errorf("memory store: unexpected value %T for %s", v, key)
	}
	return entry, nil
}

// Set stores entry under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, entry models.CacheEntry, ttl time.Duration) error {
	s.items.Set(key, entry, ttl)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Len returns the number of items held, including expired ones not yet purged.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
