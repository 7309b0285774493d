package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/remote"
	"github.com/printapic/syncd/internal/repository"
)

// LibraryRemote is the slice of the remote store the library needs.
type LibraryRemote interface {
	IsAuthenticated() bool
	UserID() string
	ListPhotos(ctx context.Context) ([]models.PhotoRecord, error)
	ListEdits(ctx context.Context) ([]models.PhotoRecord, error)
	DeleteRecord(ctx context.Context, collection models.CollectionType, remoteID string) error
}

// EditEvents opens realtime event streams on remote collections.
type EditEvents interface {
	Subscribe(collection, filter string) (*remote.Subscription, error)
}

// SyncTrigger requests a background sync run.
type SyncTrigger interface {
	Trigger(reason string) bool
}

// LibraryService is the daemon's gallery: it serves the merged photo list,
// accepts new captures, and deletes records across both stores.
type LibraryService struct {
	repo       repository.LocalPhotoRepo
	remote     LibraryRemote
	events     EditEvents
	reconciler *ReconcileService
	cache      *PhotoCache
	images     *ImageService
	syncer     SyncTrigger
	metrics    *observability.BusinessMetrics

	refreshMu  sync.Mutex
	refreshing bool
}

// NewLibraryService creates the library; events, syncer and metrics may be nil
func NewLibraryService(
	repo repository.LocalPhotoRepo,
	rem LibraryRemote,
	events EditEvents,
	reconciler *ReconcileService,
	cache *PhotoCache,
	images *ImageService,
	syncer SyncTrigger,
	metrics *observability.BusinessMetrics,
) *LibraryService {
	return &LibraryService{
		repo:       repo,
		remote:     rem,
		events:     events,
		reconciler: reconciler,
		cache:      cache,
		images:     images,
		syncer:     syncer,
		metrics:    metrics,
	}
}

// userKey scopes cache entries; without a session everything is anonymous
func (s *LibraryService) userKey() string {
	if id := s.remote.UserID(); id != "" {
		return id
	}
	return models.AnonymousUser
}

// GetPhotos returns the merged gallery list. A cache hit is served
// immediately and a refresh runs behind it; a miss builds the list inline.
func (s *LibraryService) GetPhotos(ctx context.Context) (*models.PhotoListResponse, error) {
	userKey := s.userKey()

	if cached := s.cache.GetPhotos(ctx, userKey); cached != nil {
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(ctx, true)
		}
		s.refreshInBackground(userKey)
		return &models.PhotoListResponse{
			Photos:    cached,
			FromCache: true,
			Count:     len(cached),
		}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ctx, false)
	}

	merged, err := s.refresh(ctx, userKey)
	if err != nil {
		return nil, err
	}
	return &models.PhotoListResponse{
		Photos: merged,
		Count:  len(merged),
	}, nil
}

// refreshInBackground runs at most one async refresh at a time
func (s *LibraryService) refreshInBackground(userKey string) {
	s.refreshMu.Lock()
	if s.refreshing {
		s.refreshMu.Unlock()
		return
	}
	s.refreshing = true
	s.refreshMu.Unlock()

	go func() {
		defer func() {
			s.refreshMu.Lock()
			s.refreshing = false
			s.refreshMu.Unlock()
		}()

		if _, err := s.refresh(context.Background(), userKey); err != nil {
			observability.Warnf("library: background refresh failed: %v", err)
		}
	}()
}

// refresh rebuilds the merged list from both stores and caches the result.
// A remote failure degrades to the local view and skips the cache write, so
// the stale-but-remote-aware entry is not replaced by a blind one.
func (s *LibraryService) refresh(ctx context.Context, userKey string) ([]models.PhotoRecord, error) {
	local, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if !s.remote.IsAuthenticated() {
		return s.reconciler.Merge(local, nil), nil
	}

	photos, err := s.remote.ListPhotos(ctx)
	if err != nil {
		observability.WithContext(ctx).Warnf("library: remote list failed, serving local view: %v", err)
		return s.reconciler.Merge(local, nil), nil
	}
	edits, err := s.remote.ListEdits(ctx)
	if err != nil {
		observability.WithContext(ctx).Warnf("library: edits list failed, serving local view: %v", err)
		return s.reconciler.Merge(local, nil), nil
	}

	merged := s.reconciler.Merge(local, append(photos, edits...))
	if err := s.cache.SetPhotos(ctx, merged, userKey); err != nil {
		observability.WithContext(ctx).Warnf("library: cache write failed: %v", err)
	}
	return merged, nil
}

// Capture stores an incoming image as a local-only record and nudges the
// coordinator so the upload starts promptly.
func (s *LibraryService) Capture(ctx context.Context, data []byte) (*models.PhotoRecord, error) {
	if len(data) == 0 {
		return nil, models.ErrEmptyData
	}

	meta, err := s.images.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("unreadable capture: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	photo, err := models.NewLocalPhoto(encoded, meta.Taken, meta.Width, meta.Height)
	if err != nil {
		return nil, err
	}

	// A missing preview is cosmetic; the capture still goes through
	if thumb, thumbErr := s.images.Thumbnail(data, ThumbMaxDim); thumbErr != nil {
		observability.WithContext(ctx).Warnf("library: thumbnail generation failed: %v", thumbErr)
	} else {
		photo.Thumb = base64.StdEncoding.EncodeToString(thumb)
	}

	if err := s.repo.Add(ctx, photo); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCapture(ctx, s.userKey(), int64(len(data)))
	}
	observability.WithContext(ctx).WithField("photo_id", photo.ID).Info("capture stored")

	// The merged list changed; invalidate rather than patch
	s.cache.ClearCache(ctx, s.userKey())

	if s.syncer != nil {
		s.syncer.Trigger("capture")
	}
	return photo, nil
}

// Delete removes a record everywhere it lives, remote copy first. A failed
// remote delete aborts the local one, so the record never silently
// reappears from the remote store on the next merge.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	photo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if photo == nil {
		// Not held locally: only remote-only records qualify
		remoteID, ok := models.RemoteIDFromDerived(id)
		if !ok {
			return models.ErrPhotoNotFound
		}
		if err := s.deleteRemote(ctx, models.CollectionPhotos, remoteID); err != nil {
			return err
		}
		return s.cache.ClearCache(ctx, s.userKey())
	}

	if photo.RemoteID != "" {
		primary := photo.Collection
		if primary == "" {
			primary = models.CollectionPhotos
		}
		if err := s.deleteRemote(ctx, primary, photo.RemoteID); err != nil && err != models.ErrPhotoNotFound {
			return err
		}
	}

	if _, err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.cache.ClearCache(ctx, s.userKey())
}

// deleteRemote deletes from the given collection, falling back to the other
// one when the record is not where its metadata claimed.
func (s *LibraryService) deleteRemote(ctx context.Context, primary models.CollectionType, remoteID string) error {
	if !s.remote.IsAuthenticated() {
		return models.ErrNotAuthenticated
	}

	err := s.remote.DeleteRecord(ctx, primary, remoteID)
	if err == nil {
		return nil
	}
	if !remote.IsNotFound(err) {
		observability.WithContext(ctx).Errorf("library: remote delete failed: %v", err)
		return models.ErrRemoteDeleteFailed
	}

	alternate := models.CollectionEdits
	if primary == models.CollectionEdits {
		alternate = models.CollectionPhotos
	}

	err = s.remote.DeleteRecord(ctx, alternate, remoteID)
	if err == nil {
		return nil
	}
	if remote.IsNotFound(err) {
		return models.ErrPhotoNotFound
	}
	observability.WithContext(ctx).Errorf("library: remote delete failed: %v", err)
	return models.ErrRemoteDeleteFailed
}

// WatchEdits opens a realtime stream on the caller's edit records and keeps
// the cache honest: any edit event invalidates the merged list so the next
// read re-merges. The returned subscription stops when closed or when ctx
// is cancelled.
func (s *LibraryService) WatchEdits(ctx context.Context) (*remote.Subscription, error) {
	if !s.remote.IsAuthenticated() {
		return nil, models.ErrNotAuthenticated
	}
	if s.events == nil {
		return nil, models.ErrRemoteUnavailable
	}

	filter := fmt.Sprintf("user='%s'", s.remote.UserID())
	sub, err := s.events.Subscribe("edits", filter)
	if err != nil {
		return nil, err
	}

	userKey := s.userKey()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				if event.Collection == "edits" {
					s.cache.ClearCache(context.Background(), userKey)
				}
			}
		}
	}()

	return sub, nil
}
