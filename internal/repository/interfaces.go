package repository

import (
	"context"
	"time"

	"github.com/printapic/syncd/internal/models"
)

// LocalPhotoRepo persists captured-but-unsynced photo records. Records keep
// their inline payload until the remote store holds the canonical copy.
type LocalPhotoRepo interface {
	GetByID(ctx context.Context, id string) (*models.PhotoRecord, error)
	GetAll(ctx context.Context) ([]models.PhotoRecord, error)
	GetLocalOnly(ctx context.Context) ([]models.PhotoRecord, error)
	GetLocalOnlySince(ctx context.Context, since time.Time) ([]models.PhotoRecord, error)
	CountLocalOnly(ctx context.Context) (int, error)
	Add(ctx context.Context, photo *models.PhotoRecord) error
	SetRemoteID(ctx context.Context, id, remoteID string) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CacheRepo is the durable tier of the merged-list cache, keyed by user.
type CacheRepo interface {
	Get(ctx context.Context, userID string) (*models.CacheEntry, error)
	Set(ctx context.Context, userID string, entry *models.CacheEntry) error
	Delete(ctx context.Context, userID string) error
	DeleteAll(ctx context.Context) error
}
