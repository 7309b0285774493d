package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/printapic/syncd/internal/models"
)

// LocalPhotoRepository handles local photo persistence (SQLite)
type LocalPhotoRepository struct {
	db *sql.DB
}

// NewLocalPhotoRepository creates a new LocalPhotoRepository
func NewLocalPhotoRepository(db *sql.DB) *LocalPhotoRepository {
	return &LocalPhotoRepository{db: db}
}

func scanLocalPhoto(scan func(dest ...interface{}) error) (*models.PhotoRecord, error) {
	var photo models.PhotoRecord
	var remoteID sql.NullString
	if err := scan(
		&photo.ID,
		&remoteID,
		&photo.Data,
		&photo.Thumb,
		&photo.Timestamp,
		&photo.Width,
		&photo.Height,
	); err != nil {
		return nil, err
	}

	photo.Collection = models.CollectionPhotos
	photo.SyncStatus = models.SyncLocalOnly
	if remoteID.Valid && remoteID.String != "" {
		photo.RemoteID = remoteID.String
		photo.SyncStatus = models.SyncSynced
	}
	return &photo, nil
}

// GetByID retrieves a local photo by its client-side id
func (r *LocalPhotoRepository) GetByID(ctx context.Context, id string) (*models.PhotoRecord, error) {
	query := `
		SELECT id, remote_id, data, thumb, timestamp, width, height
		FROM local_photos WHERE id = ?
	`

	photo, err := scanLocalPhoto(r.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return photo, nil
}

// GetAll retrieves every locally held photo, newest first
func (r *LocalPhotoRepository) GetAll(ctx context.Context) ([]models.PhotoRecord, error) {
	query := `
		SELECT id, remote_id, data, thumb, timestamp, width, height
		FROM local_photos
		ORDER BY timestamp DESC
	`
	return r.queryPhotos(ctx, query)
}

// GetLocalOnly retrieves photos that have no remote counterpart yet
func (r *LocalPhotoRepository) GetLocalOnly(ctx context.Context) ([]models.PhotoRecord, error) {
	query := `
		SELECT id, remote_id, data, thumb, timestamp, width, height
		FROM local_photos
		WHERE remote_id IS NULL OR remote_id = ''
		ORDER BY timestamp DESC
	`
	return r.queryPhotos(ctx, query)
}

// GetLocalOnlySince retrieves unsynced photos captured at or after the cutoff
func (r *LocalPhotoRepository) GetLocalOnlySince(ctx context.Context, since time.Time) ([]models.PhotoRecord, error) {
	query := `
		SELECT id, remote_id, data, thumb, timestamp, width, height
		FROM local_photos
		WHERE (remote_id IS NULL OR remote_id = '') AND timestamp >= ?
		ORDER BY timestamp DESC
	`
	return r.queryPhotos(ctx, query, since)
}

func (r *LocalPhotoRepository) queryPhotos(ctx context.Context, query string, args ...interface{}) ([]models.PhotoRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.PhotoRecord
	for rows.Next() {
		photo, err := scanLocalPhoto(rows.Scan)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *photo)
	}

	if photos == nil {
		photos = []models.PhotoRecord{}
	}

	return photos, rows.Err()
}

// CountLocalOnly returns the number of unsynced photos
func (r *LocalPhotoRepository) CountLocalOnly(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM local_photos WHERE remote_id IS NULL OR remote_id = ''",
	).Scan(&count)
	return count, err
}

// Add inserts a new local photo
func (r *LocalPhotoRepository) Add(ctx context.Context, photo *models.PhotoRecord) error {
	query := `
		INSERT INTO local_photos (id, remote_id, data, thumb, timestamp, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		photo.ID,
		photo.RemoteID,
		photo.Data,
		photo.Thumb,
		photo.Timestamp,
		photo.Width,
		photo.Height,
		time.Now().UTC(),
	)

	return err
}

// SetRemoteID binds a local photo to its uploaded remote record
func (r *LocalPhotoRepository) SetRemoteID(ctx context.Context, id, remoteID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE local_photos SET remote_id = ? WHERE id = ?", remoteID, id)
	return err
}

// Delete removes a local photo by id
func (r *LocalPhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM local_photos WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
