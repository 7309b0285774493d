package services

import (
	"sort"
	"time"

	"github.com/printapic/syncd/internal/models"
)

const (
	// timestampWindow is the tier-3 match window around a local capture time.
	timestampWindow = 5 * time.Second

	// dimensionWindow is the tier-4 window. Wider than tier 3 because the
	// dimension requirement supplies the missing confidence.
	dimensionWindow = 60 * time.Second
)

// ReconcileService merges local-only candidates with freshly fetched remote
// records into one ordered, deduplicated list. Pure: no I/O, no clock.
//
// Local and remote id spaces are generated independently, and the explicit
// localRef back-reference is only reliably present after a completed upload
// round-trip. Interrupted syncs must still be reconcilable, so matching
// degrades through progressively weaker signals. Tier 4 can bind the wrong
// pair when two photos share dimensions within the same minute; that is an
// accepted limitation, mitigated only by tier precedence.
type ReconcileService struct{}

// NewReconcileService creates a new ReconcileService
func NewReconcileService() *ReconcileService {
	return &ReconcileService{}
}

// Merge reconciles the two record sets. Local record ids never change;
// remote records not claimed by any local record are appended as
// remote-only with their deterministic derived id. Each remote record is
// claimed at most once per pass.
func (s *ReconcileService) Merge(local, remote []models.PhotoRecord) []models.PhotoRecord {
	claimed := make(map[string]bool, len(remote))
	merged := make([]models.PhotoRecord, 0, len(local)+len(remote))

	for _, lp := range local {
		match := s.findMatch(lp, remote, claimed)
		if match == nil {
			lp.SyncStatus = models.SyncLocalOnly
			merged = append(merged, lp)
			continue
		}

		claimed[match.RemoteID] = true
		merged = append(merged, bind(lp, *match))
	}

	for _, rp := range remote {
		if !claimed[rp.RemoteID] {
			rp.SyncStatus = models.SyncRemoteOnly
			merged = append(merged, rp)
		}
	}

	// Descending by capture time, falling back to remote creation time.
	// Stable: equal keys keep their relative order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SortKey().After(merged[j].SortKey())
	})

	return merged
}

// findMatch applies the matching tiers in priority order, first match wins
func (s *ReconcileService) findMatch(lp models.PhotoRecord, remote []models.PhotoRecord, claimed map[string]bool) *models.PhotoRecord {
	// Tier 1: the local record already carries the remote id
	if lp.RemoteID != "" {
		for i := range remote {
			if remote[i].RemoteID == lp.RemoteID && !claimed[remote[i].RemoteID] {
				return &remote[i]
			}
		}
	}

	// Tier 2: a remote record declares an explicit back-reference
	for i := range remote {
		if remote[i].LocalRef != "" && remote[i].LocalRef == lp.ID && !claimed[remote[i].RemoteID] {
			return &remote[i]
		}
	}

	// Tier 3: creation time within the timestamp window
	var windowed []*models.PhotoRecord
	for i := range remote {
		if claimed[remote[i].RemoteID] {
			continue
		}
		if absDuration(remote[i].Created.Sub(lp.Timestamp)) <= timestampWindow {
			windowed = append(windowed, &remote[i])
		}
	}
	if len(windowed) == 1 {
		return windowed[0]
	}
	if len(windowed) > 1 {
		for _, candidate := range windowed {
			if candidate.Width == lp.Width && candidate.Height == lp.Height {
				return candidate
			}
		}
		return windowed[0]
	}

	// Tier 4: identical dimensions and creation within the wider window
	for i := range remote {
		if claimed[remote[i].RemoteID] {
			continue
		}
		if remote[i].Width == lp.Width && remote[i].Height == lp.Height &&
			absDuration(remote[i].Created.Sub(lp.Timestamp)) <= dimensionWindow {
			return &remote[i]
		}
	}

	return nil
}

// bind produces the merged synced record: local identity, remote substance
func bind(lp, rp models.PhotoRecord) models.PhotoRecord {
	out := lp
	out.RemoteID = rp.RemoteID
	out.RemoteURL = rp.RemoteURL
	out.ThumbURL = rp.ThumbURL
	out.Created = rp.Created
	out.Collection = rp.Collection
	out.Processing = rp.Processing
	out.SyncStatus = models.SyncSynced
	if out.Width == 0 {
		out.Width = rp.Width
		out.Height = rp.Height
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
