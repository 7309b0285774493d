package models

import "time"

// SyncItemStatus is the per-record outcome of one sync batch.
type SyncItemStatus string

const (
	SyncItemSynced        SyncItemStatus = "synced"
	SyncItemAlreadySynced SyncItemStatus = "already_synced"
	SyncItemFailed        SyncItemStatus = "failed"
)

// SyncJobRecord is the ephemeral per-record result of a sync batch. It is
// folded into the photo list and then discarded, never persisted.
type SyncJobRecord struct {
	LocalID  string         `json:"localId"`
	Status   SyncItemStatus `json:"status"`
	RemoteID string         `json:"remoteId,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// SyncSummary aggregates one batch.
type SyncSummary struct {
	Attempted  int             `json:"attempted"`
	Successful int             `json:"successful"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Records    []SyncJobRecord `json:"records,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// SyncState is the coordinator's single-flight gate.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
)
