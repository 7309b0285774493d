package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/printapic/syncd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *LocalPhotoRepository {
	t.Helper()

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLocalPhotoRepository(db)
}

func testPhoto(t *testing.T, ts time.Time) *models.PhotoRecord {
	t.Helper()

	photo, err := models.NewLocalPhoto("aGVsbG8=", ts, 100, 100)
	require.NoError(t, err)
	return photo
}

func TestLocalPhotoRepository_AddAndGet(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	photo := testPhoto(t, ts)
	photo.Thumb = "dGh1bWI="
	require.NoError(t, repo.Add(ctx, photo))

	got, err := repo.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, photo.ID, got.ID)
	assert.Equal(t, "aGVsbG8=", got.Data)
	assert.Equal(t, "dGh1bWI=", got.Thumb)
	assert.Equal(t, models.SyncLocalOnly, got.SyncStatus)
	assert.True(t, got.Timestamp.Equal(ts))
}

func TestLocalPhotoRepository_GetByID_Missing(t *testing.T) {
	repo := newTestDB(t)

	got, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalPhotoRepository_SetRemoteID(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	photo := testPhoto(t, time.Now().UTC())
	require.NoError(t, repo.Add(ctx, photo))
	require.NoError(t, repo.SetRemoteID(ctx, photo.ID, "remote-1"))

	got, err := repo.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "remote-1", got.RemoteID)
	assert.Equal(t, models.SyncSynced, got.SyncStatus)

	// Bound records no longer count as local-only
	count, err := repo.CountLocalOnly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLocalPhotoRepository_GetLocalOnlySince(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	old := testPhoto(t, time.Now().UTC().Add(-time.Hour))
	recent := testPhoto(t, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, repo.Add(ctx, old))
	require.NoError(t, repo.Add(ctx, recent))

	got, err := repo.GetLocalOnlySince(ctx, time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.ID, got[0].ID)
}

func TestLocalPhotoRepository_Delete(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	photo := testPhoto(t, time.Now().UTC())
	require.NoError(t, repo.Add(ctx, photo))

	deleted, err := repo.Delete(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, photo.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCacheRepository_RoundTrip(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewCacheRepository(db)
	ctx := context.Background()

	written := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &models.CacheEntry{
		Photos: []models.PhotoRecord{
			{ID: "p1", SyncStatus: models.SyncLocalOnly, Timestamp: written},
		},
		Timestamp: written,
	}
	require.NoError(t, repo.Set(ctx, "user1", entry))

	got, err := repo.Get(ctx, "user1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Photos, 1)
	assert.Equal(t, "p1", got.Photos[0].ID)
	assert.True(t, got.Timestamp.Equal(written))

	// Per-user keying
	miss, err := repo.Get(ctx, "user2")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// Overwrite replaces, not appends
	entry.Photos = append(entry.Photos, models.PhotoRecord{ID: "p2"})
	require.NoError(t, repo.Set(ctx, "user1", entry))
	got, err = repo.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, got.Photos, 2)

	require.NoError(t, repo.Delete(ctx, "user1"))
	got, err = repo.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
