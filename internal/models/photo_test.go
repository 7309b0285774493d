package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalPhoto(t *testing.T) {
	t.Run("creates local-only record with generated id", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		photo, err := NewLocalPhoto("aGVsbG8=", ts, 100, 200)
		require.NoError(t, err)

		assert.NotEmpty(t, photo.ID)
		assert.Equal(t, SyncLocalOnly, photo.SyncStatus)
		assert.Equal(t, CollectionPhotos, photo.Collection)
		assert.Equal(t, ts, photo.Timestamp)
		assert.Equal(t, 100, photo.Width)
		assert.Equal(t, 200, photo.Height)
	})

	t.Run("rejects empty data", func(t *testing.T) {
		_, err := NewLocalPhoto("", time.Now(), 100, 100)
		assert.Equal(t, ErrEmptyData, err)
	})

	t.Run("rejects non-positive dimensions", func(t *testing.T) {
		_, err := NewLocalPhoto("aGVsbG8=", time.Now(), 0, 100)
		assert.Equal(t, ErrInvalidDimensions, err)
	})

	t.Run("defaults zero timestamp to now", func(t *testing.T) {
		photo, err := NewLocalPhoto("aGVsbG8=", time.Time{}, 10, 10)
		require.NoError(t, err)
		assert.False(t, photo.Timestamp.IsZero())
	})
}

func TestSyncStatus_Pairing(t *testing.T) {
	// Each status maps to exactly one (hasLocal, hasRemote) pair.
	tests := []struct {
		status    SyncStatus
		hasLocal  bool
		hasRemote bool
	}{
		{SyncLocalOnly, true, false},
		{SyncSynced, true, true},
		{SyncRemoteOnly, false, true},
		{SyncSyncing, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.hasLocal, tt.status.HasLocal())
			assert.Equal(t, tt.hasRemote, tt.status.HasRemote())
		})
	}
}

func TestPhotoRecord_SortKey(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("prefers capture timestamp", func(t *testing.T) {
		p := PhotoRecord{Timestamp: ts, Created: created}
		assert.Equal(t, ts, p.SortKey())
	})

	t.Run("falls back to created", func(t *testing.T) {
		p := PhotoRecord{Created: created}
		assert.Equal(t, created, p.SortKey())
	})
}

func TestLocalIDForRemote(t *testing.T) {
	assert.Equal(t, "r_abc123", LocalIDForRemote("abc123"))
	// Deterministic: same remote id, same local id across passes.
	assert.Equal(t, LocalIDForRemote("x"), LocalIDForRemote("x"))
}

func TestNewPrintOrder(t *testing.T) {
	t.Run("prices in tokens per sheet", func(t *testing.T) {
		order, err := NewPrintOrder([]string{"e1", "e2"}, 3, "1 Main St")
		require.NoError(t, err)
		assert.Equal(t, 3*TokensPerSheet, order.TokenCost)
		assert.Equal(t, "pending", order.Status)
	})

	t.Run("rejects empty edits", func(t *testing.T) {
		_, err := NewPrintOrder(nil, 1, "1 Main St")
		assert.Equal(t, ErrOrderNoEdits, err)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := NewPrintOrder([]string{"e1"}, 0, "1 Main St")
		assert.Equal(t, ErrOrderBadQuantity, err)
	})
}
