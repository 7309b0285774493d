package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/printapic/syncd/internal/models"
)

// CacheRepositoryPostgres is the durable cache tier (PostgreSQL)
type CacheRepositoryPostgres struct {
	db *sql.DB
}

// NewCacheRepositoryPostgres creates a new CacheRepositoryPostgres
func NewCacheRepositoryPostgres(db *sql.DB) *CacheRepositoryPostgres {
	return &CacheRepositoryPostgres{db: db}
}

// Get retrieves the cached entry for a user, or nil when absent
func (r *CacheRepositoryPostgres) Get(ctx context.Context, userID string) (*models.CacheEntry, error) {
	var payload string
	var writtenAt time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, written_at FROM cache_entries WHERE user_id = $1", userID,
	).Scan(&payload, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var photos []models.PhotoRecord
	if err := json.Unmarshal([]byte(payload), &photos); err != nil {
		return nil, nil
	}

	return &models.CacheEntry{Photos: photos, Timestamp: writtenAt}, nil
}

// Set upserts the cached entry for a user
func (r *CacheRepositoryPostgres) Set(ctx context.Context, userID string, entry *models.CacheEntry) error {
	payload, err := json.Marshal(entry.Photos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cache_entries (user_id, payload, written_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, written_at = EXCLUDED.written_at
	`
	_, err = r.db.ExecContext(ctx, query, userID, string(payload), entry.Timestamp)
	return err
}

// Delete removes the cached entry for a user
func (r *CacheRepositoryPostgres) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE user_id = $1", userID)
	return err
}

// DeleteAll removes every cached entry
func (r *CacheRepositoryPostgres) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries")
	return err
}
