package services

import (
	"context"
	"testing"
	"time"

	"github.com/printapic/syncd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCacheRepo is an in-memory stand-in for the durable tier
type fakeCacheRepo struct {
	entries map[string]*models.CacheEntry
	deletes int
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string]*models.CacheEntry)}
}

func (f *fakeCacheRepo) Get(_ context.Context, userID string) (*models.CacheEntry, error) {
	return f.entries[userID], nil
}

func (f *fakeCacheRepo) Set(_ context.Context, userID string, entry *models.CacheEntry) error {
	f.entries[userID] = entry
	return nil
}

func (f *fakeCacheRepo) Delete(_ context.Context, userID string) error {
	delete(f.entries, userID)
	f.deletes++
	return nil
}

func (f *fakeCacheRepo) DeleteAll(_ context.Context) error {
	f.entries = make(map[string]*models.CacheEntry)
	return nil
}

func testPhotos(ids ...string) []models.PhotoRecord {
	photos := make([]models.PhotoRecord, len(ids))
	for i, id := range ids {
		photos[i] = models.PhotoRecord{ID: id, SyncStatus: models.SyncLocalOnly}
	}
	return photos
}

func TestPhotoCache_SetThenGet(t *testing.T) {
	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	ctx := context.Background()

	photos := testPhotos("p1", "p2")
	require.NoError(t, cache.SetPhotos(ctx, photos, "user1"))

	got := cache.GetPhotos(ctx, "user1")
	assert.Equal(t, photos, got)
}

func TestPhotoCache_MissForUnknownUser(t *testing.T) {
	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	assert.Nil(t, cache.GetPhotos(context.Background(), "nobody"))
}

func TestPhotoCache_PerUserKeys(t *testing.T) {
	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetPhotos(ctx, testPhotos("a"), "user1"))
	require.NoError(t, cache.SetPhotos(ctx, testPhotos("b"), "user2"))

	assert.Equal(t, "a", cache.GetPhotos(ctx, "user1")[0].ID)
	assert.Equal(t, "b", cache.GetPhotos(ctx, "user2")[0].ID)
}

func TestPhotoCache_Expiry(t *testing.T) {
	durable := newFakeCacheRepo()
	cache := NewPhotoCache(durable, 5*time.Minute)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }
	require.NoError(t, cache.SetPhotos(ctx, testPhotos("p1"), "user1"))

	// Just inside the window
	cache.now = func() time.Time { return base.Add(5*time.Minute - time.Second) }
	assert.NotNil(t, cache.GetPhotos(ctx, "user1"))

	// At the boundary: expired
	cache.now = func() time.Time { return base.Add(5 * time.Minute) }
	assert.Nil(t, cache.GetPhotos(ctx, "user1"))

	// The stale durable entry was deleted on read
	assert.Nil(t, durable.entries["user1"])
}

func TestPhotoCache_DurableFallback(t *testing.T) {
	durable := newFakeCacheRepo()
	cache := NewPhotoCache(durable, 5*time.Minute)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	// Entry exists only in the durable tier, as after a daemon restart
	durable.entries["user1"] = &models.CacheEntry{
		Photos:    testPhotos("p1"),
		Timestamp: base.Add(-time.Minute),
	}

	got := cache.GetPhotos(ctx, "user1")
	require.NotNil(t, got)
	assert.Equal(t, "p1", got[0].ID)
}

func TestPhotoCache_Clear(t *testing.T) {
	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetPhotos(ctx, testPhotos("a"), "user1"))
	require.NoError(t, cache.SetPhotos(ctx, testPhotos("b"), "user2"))

	require.NoError(t, cache.ClearCache(ctx, "user1"))
	assert.Nil(t, cache.GetPhotos(ctx, "user1"))
	assert.NotNil(t, cache.GetPhotos(ctx, "user2"))

	require.NoError(t, cache.ClearAllCaches(ctx))
	assert.Nil(t, cache.GetPhotos(ctx, "user2"))
}
