package services

import (
	"context"
	"sync"
	"time"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/repository"
)

// PhotoCache memoizes the merged photo list per user so the gallery paints
// before the network round-trip completes. Two tiers: an in-process map
// and the durable store, which survives daemon restarts. Hits are
// advisory; callers always follow with a background refresh.
type PhotoCache struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
	durable repository.CacheRepo
	ttl     time.Duration
	now     func() time.Time
}

// NewPhotoCache creates a cache with the given validity window
func NewPhotoCache(durable repository.CacheRepo, ttl time.Duration) *PhotoCache {
	return &PhotoCache{
		entries: make(map[string]*models.CacheEntry),
		durable: durable,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetPhotos writes the merged list to both tiers, stamped with the current time
func (c *PhotoCache) SetPhotos(ctx context.Context, photos []models.PhotoRecord, userID string) error {
	entry := &models.CacheEntry{
		Photos:    photos,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	c.entries[userID] = entry
	c.mu.Unlock()

	return c.durable.Set(ctx, userID, entry)
}

// GetPhotos returns the cached merged list, or nil on a miss. Memory is
// checked first; on a memory miss the durable tier is consulted. Expired
// entries count as misses, and a stale durable entry is deleted on read.
func (c *PhotoCache) GetPhotos(ctx context.Context, userID string) []models.PhotoRecord {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if ok {
		if !entry.Expired(now, c.ttl) {
			return entry.Photos
		}
		c.mu.Lock()
		delete(c.entries, userID)
		c.mu.Unlock()
	}

	durableEntry, err := c.durable.Get(ctx, userID)
	if err != nil || durableEntry == nil {
		return nil
	}

	if durableEntry.Expired(now, c.ttl) {
		c.durable.Delete(ctx, userID)
		return nil
	}

	// Promote to memory for subsequent reads
	c.mu.Lock()
	c.entries[userID] = durableEntry
	c.mu.Unlock()

	return durableEntry.Photos
}

// ClearCache drops the entry for one user from both tiers
func (c *PhotoCache) ClearCache(ctx context.Context, userID string) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()

	return c.durable.Delete(ctx, userID)
}

// ClearAllCaches drops every entry; used on sign-out
func (c *PhotoCache) ClearAllCaches(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*models.CacheEntry)
	c.mu.Unlock()

	return c.durable.DeleteAll(ctx)
}
