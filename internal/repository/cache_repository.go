package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/printapic/syncd/internal/models"
)

// CacheRepository is the durable cache tier (SQLite). Entries survive
// daemon restarts the way localStorage survives page reloads.
type CacheRepository struct {
	db *sql.DB
}

// NewCacheRepository creates a new CacheRepository
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get retrieves the cached entry for a user, or nil when absent
func (r *CacheRepository) Get(ctx context.Context, userID string) (*models.CacheEntry, error) {
	var payload string
	var writtenAt time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, written_at FROM cache_entries WHERE user_id = ?", userID,
	).Scan(&payload, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var photos []models.PhotoRecord
	if err := json.Unmarshal([]byte(payload), &photos); err != nil {
		// Corrupt durable entry is treated as a miss
		return nil, nil
	}

	return &models.CacheEntry{Photos: photos, Timestamp: writtenAt}, nil
}

// Set upserts the cached entry for a user
func (r *CacheRepository) Set(ctx context.Context, userID string, entry *models.CacheEntry) error {
	payload, err := json.Marshal(entry.Photos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cache_entries (user_id, payload, written_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at
	`
	_, err = r.db.ExecContext(ctx, query, userID, string(payload), entry.Timestamp)
	return err
}

// Delete removes the cached entry for a user
func (r *CacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE user_id = ?", userID)
	return err
}

// DeleteAll removes every cached entry
func (r *CacheRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries")
	return err
}
