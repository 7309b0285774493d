package services

import (
	"context"
	"sync"
	"time"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/repository"
)

// SyncRemote is the slice of the remote store the coordinator needs.
type SyncRemote interface {
	IsAuthenticated() bool
	UserID() string
	Ping(ctx context.Context) error
	UploadPhoto(ctx context.Context, photo *models.PhotoRecord) (string, error)
}

// SyncCoordinator pushes local-only captures to the remote store. One batch
// runs at a time; triggers arriving mid-batch queue a single follow-up run.
// Batches are best-effort: a wholesale failure is retried with backoff, while
// a record that fails on its own stays local-only for the next pass, never
// dropped.
type SyncCoordinator struct {
	repo    repository.LocalPhotoRepo
	remote  SyncRemote
	cache   *PhotoCache
	metrics *observability.BusinessMetrics
	cfg     config.Sync

	mu         sync.Mutex
	state      models.SyncState
	pendingRun bool
	lastBatch  *models.SyncSummary
	lastSyncAt time.Time
	online     bool

	triggers chan string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncCoordinator creates a coordinator; metrics may be nil
func NewSyncCoordinator(repo repository.LocalPhotoRepo, remote SyncRemote, cache *PhotoCache, metrics *observability.BusinessMetrics, cfg config.Sync) *SyncCoordinator {
	return &SyncCoordinator{
		repo:     repo,
		remote:   remote,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		state:    models.SyncStateIdle,
		triggers: make(chan string, 8),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns the coordinator's current gate state
func (s *SyncCoordinator) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the gate state with the last batch outcome
func (s *SyncCoordinator) Snapshot() (models.SyncState, *models.SyncSummary, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastBatch, s.lastSyncAt
}

// Trigger requests a sync run. Returns false when a batch is already in
// flight; the request is still remembered and a follow-up batch runs after
// the current one finishes.
func (s *SyncCoordinator) Trigger(reason string) bool {
	s.mu.Lock()
	busy := s.state == models.SyncStateSyncing
	if busy {
		s.pendingRun = true
	}
	s.mu.Unlock()

	if !busy {
		select {
		case s.triggers <- reason:
		default:
		}
	}
	return !busy
}

// HandleAuthChange reacts to session transitions: a sign-in starts a catch-up
// batch, a sign-out stops mattering until the next one.
func (s *SyncCoordinator) HandleAuthChange(signedIn bool) {
	if signedIn {
		s.Trigger("auth")
	}
}

// Run drives the coordinator until ctx is cancelled. A startup batch runs
// immediately, then the interval timer and external triggers take over.
// Connectivity is probed each tick; an offline-to-online transition counts
// as a trigger of its own.
func (s *SyncCoordinator) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	s.runBatch(ctx, "startup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-s.triggers:
			s.runBatch(ctx, reason)
		case <-ticker.C:
			if s.cameOnline(ctx) {
				s.runBatch(ctx, "online")
			} else {
				s.runBatch(ctx, "interval")
			}
		}
	}
}

// cameOnline probes the remote store and reports an offline-to-online edge
func (s *SyncCoordinator) cameOnline(ctx context.Context) bool {
	err := s.remote.Ping(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	wasOnline := s.online
	s.online = err == nil
	return s.online && !wasOnline
}

// runBatch executes one sync batch end to end, honoring the single-flight
// gate. Queued follow-up requests are drained by looping.
func (s *SyncCoordinator) runBatch(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.state == models.SyncStateSyncing {
		s.pendingRun = true
		s.mu.Unlock()
		return
	}
	s.state = models.SyncStateSyncing
	s.mu.Unlock()

	for {
		summary := s.syncOnce(ctx, reason)

		s.mu.Lock()
		if summary != nil {
			s.lastBatch = summary
			s.lastSyncAt = s.now()
		}
		again := s.pendingRun && ctx.Err() == nil
		s.pendingRun = false
		if !again {
			s.state = models.SyncStateIdle
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		reason = "queued"
	}
}

// syncOnce uploads the pending records once, retrying with backoff only when
// the batch fails wholesale. Returns nil when there was nothing to do or no
// session to do it with.
func (s *SyncCoordinator) syncOnce(ctx context.Context, reason string) *models.SyncSummary {
	if !s.remote.IsAuthenticated() {
		return nil
	}

	pending, err := s.selectPending(ctx)
	if err != nil {
		observability.WithContext(ctx).Errorf("sync: selecting pending records: %v", err)
		return nil
	}
	if len(pending) == 0 {
		return nil
	}

	log := observability.WithFields(map[string]interface{}{
		"reason":  reason,
		"pending": len(pending),
	})
	log.Info("sync batch starting")

	summary := &models.SyncSummary{Attempted: len(pending)}
	failed := s.uploadRecords(ctx, pending, summary)

	// Retry only when nothing got through: that points at the remote side,
	// not the records. A record that fails inside an otherwise successful
	// batch stays local-only and rides the next scheduled pass instead.
	backoff := time.Duration(s.cfg.RetryBackoffSec) * time.Second
	for attempt := 1; attempt <= s.cfg.MaxRetries && len(failed) > 0 && summary.Successful == 0 && summary.Skipped == 0; attempt++ {
		if err := s.sleep(ctx, backoff); err != nil {
			break
		}
		retrySummary := &models.SyncSummary{}
		failed = s.uploadRecords(ctx, failed, retrySummary)
		summary.Successful += retrySummary.Successful
		summary.Skipped += retrySummary.Skipped
		mergeRetryRecords(summary, retrySummary)
	}

	summary.Failed = len(failed)
	summary.FinishedAt = s.now()

	if s.metrics != nil {
		s.metrics.RecordSyncBatch(ctx, s.remote.UserID(), summary.Successful, summary.Failed)
	}
	log.WithFields(map[string]interface{}{
		"successful": summary.Successful,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Info("sync batch finished")

	// The merged list changed shape; force a re-merge on the next read
	if summary.Successful > 0 && s.cache != nil {
		s.cache.ClearCache(ctx, s.remote.UserID())
	}

	return summary
}

// selectPending returns the records to upload, recent captures first. The
// recency window keeps a fresh capture from waiting behind a deep backlog.
func (s *SyncCoordinator) selectPending(ctx context.Context) ([]models.PhotoRecord, error) {
	window := time.Duration(s.cfg.RecentWindowMin) * time.Minute
	recent, err := s.repo.GetLocalOnlySince(ctx, s.now().Add(-window))
	if err != nil {
		return nil, err
	}

	all, err := s.repo.GetLocalOnly(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(recent))
	for _, p := range recent {
		seen[p.ID] = true
	}

	ordered := recent
	for _, p := range all {
		if !seen[p.ID] {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// uploadRecords uploads sequentially with a courtesy delay between records,
// appending per-record outcomes to summary. Returns the records that failed.
func (s *SyncCoordinator) uploadRecords(ctx context.Context, records []models.PhotoRecord, summary *models.SyncSummary) []models.PhotoRecord {
	delay := time.Duration(s.cfg.UploadDelayMs) * time.Millisecond
	var failed []models.PhotoRecord

	for i, record := range records {
		if i > 0 && delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				break
			}
		}

		// Another path may have synced this record since selection
		current, err := s.repo.GetByID(ctx, record.ID)
		if err == nil && current != nil && current.SyncStatus.HasRemote() {
			summary.Skipped++
			summary.Records = append(summary.Records, models.SyncJobRecord{
				LocalID:  record.ID,
				Status:   models.SyncItemAlreadySynced,
				RemoteID: current.RemoteID,
			})
			continue
		}

		remoteID, err := s.remote.UploadPhoto(ctx, &record)
		if err != nil {
			observability.WithField("photo_id", record.ID).Warnf("sync: upload failed: %v", err)
			summary.Records = append(summary.Records, models.SyncJobRecord{
				LocalID: record.ID,
				Status:  models.SyncItemFailed,
				Error:   err.Error(),
			})
			failed = append(failed, record)
			continue
		}

		if err := s.repo.SetRemoteID(ctx, record.ID, remoteID); err != nil {
			observability.WithField("photo_id", record.ID).Errorf("sync: recording remote id: %v", err)
		}
		summary.Successful++
		summary.Records = append(summary.Records, models.SyncJobRecord{
			LocalID:  record.ID,
			Status:   models.SyncItemSynced,
			RemoteID: remoteID,
		})
	}

	return failed
}

// mergeRetryRecords replaces failed entries in dst with their retry outcomes
func mergeRetryRecords(dst, retry *models.SyncSummary) {
	byID := make(map[string]models.SyncJobRecord, len(retry.Records))
	for _, r := range retry.Records {
		byID[r.LocalID] = r
	}
	for i, r := range dst.Records {
		if r.Status == models.SyncItemFailed {
			if updated, ok := byID[r.LocalID]; ok {
				dst.Records[i] = updated
			}
		}
	}
}
