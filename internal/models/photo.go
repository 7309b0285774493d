package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncStatus describes where a photo record currently lives.
type SyncStatus string

const (
	// SyncLocalOnly means the record exists only in the local store.
	SyncLocalOnly SyncStatus = "local_only"
	// SyncSynced means the record is present in both stores and bound together.
	SyncSynced SyncStatus = "synced"
	// SyncRemoteOnly means the record is known only to the remote store.
	SyncRemoteOnly SyncStatus = "remote_only"
	// SyncSyncing means an upload for the record is currently in flight.
	SyncSyncing SyncStatus = "syncing"
)

// HasLocal reports whether a record with this status is held in the local store.
func (s SyncStatus) HasLocal() bool {
	return s == SyncLocalOnly || s == SyncSynced || s == SyncSyncing
}

// HasRemote reports whether a record with this status exists in the remote store.
func (s SyncStatus) HasRemote() bool {
	return s == SyncSynced || s == SyncRemoteOnly
}

// CollectionType identifies which remote collection a record originated from.
type CollectionType string

const (
	// CollectionPhotos holds user-captured originals.
	CollectionPhotos CollectionType = "photos"
	// CollectionEdits holds AI-transformed derivatives.
	CollectionEdits CollectionType = "edits"
)

// ProcessingInfo is present only on AI-transformed records.
type ProcessingInfo struct {
	Status     string `json:"status"`
	TokensUsed int    `json:"tokensUsed"`
}

// PhotoRecord is the merged logical view of a photo. The id is client-side
// and stable across reconciliation passes; remote-only records derive it
// deterministically from the remote id.
type PhotoRecord struct {
	ID         string          `json:"id"`
	RemoteID   string          `json:"remoteId,omitempty"`
	LocalRef   string          `json:"localRef,omitempty"` // remote back-reference to a client id
	Data       string          `json:"data,omitempty"`  // base64 payload, held locally only
	Thumb      string          `json:"thumb,omitempty"` // base64 JPEG preview, generated at capture
	RemoteURL  string          `json:"remoteUrl,omitempty"`
	ThumbURL   string          `json:"thumbUrl,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Created    time.Time       `json:"created,omitempty"` // remote creation time
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	SyncStatus SyncStatus      `json:"syncStatus"`
	Collection CollectionType  `json:"collectionType,omitempty"`
	Processing *ProcessingInfo `json:"processing,omitempty"`
}

// NewLocalPhoto creates a freshly captured local-only record.
func NewLocalPhoto(data string, timestamp time.Time, width, height int) (*PhotoRecord, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrEmptyData
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	return &PhotoRecord{
		ID:         uuid.New().String(),
		Data:       data,
		Timestamp:  timestamp,
		Width:      width,
		Height:     height,
		SyncStatus: SyncLocalOnly,
		Collection: CollectionPhotos,
	}, nil
}

// LocalIDForRemote derives the stable client-side id for a record that was
// first seen in the remote store.
func LocalIDForRemote(remoteID string) string {
	return "r_" + remoteID
}

// RemoteIDFromDerived recovers the remote id from a derived client id.
func RemoteIDFromDerived(id string) (string, bool) {
	return strings.CutPrefix(id, "r_")
}

// IsDerived reports whether the record is the output of an AI transform.
func (p *PhotoRecord) IsDerived() bool {
	return p.Collection == CollectionEdits
}

// SortKey is the ordering key for the merged list: capture time, falling
// back to the remote creation time when no capture time is known.
func (p *PhotoRecord) SortKey() time.Time {
	if !p.Timestamp.IsZero() {
		return p.Timestamp
	}
	return p.Created
}

// DisplayURL returns the best available URL for rendering the record, or
// empty when only inline data exists.
func (p *PhotoRecord) DisplayURL() string {
	if p.ThumbURL != "" {
		return p.ThumbURL
	}
	return p.RemoteURL
}

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptyData         = PhotoError{"photo data cannot be empty"}
	ErrInvalidDimensions = PhotoError{"photo dimensions must be positive"}
	ErrPhotoNotFound     = PhotoError{"photo not found"}
	ErrNotAuthenticated  = PhotoError{"no authenticated session"}
	ErrRemoteUnavailable = PhotoError{"remote store unavailable"}
	ErrRemoteDeleteFailed = PhotoError{"remote delete failed; local copy kept"}
	ErrInsufficientTokens = PhotoError{"insufficient token balance"}
	ErrEditNotFound       = PhotoError{"edit not found"}
	ErrProcessingFailed   = PhotoError{"image processing failed"}
)
