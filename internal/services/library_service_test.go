package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibraryRemote struct {
	mu      sync.Mutex
	authed  bool
	userID  string
	photos  []models.PhotoRecord
	edits   []models.PhotoRecord
	listErr error

	deleted   [][2]string // collection, remoteID
	deleteErr map[string]error
}

func (f *fakeLibraryRemote) IsAuthenticated() bool { return f.authed }
func (f *fakeLibraryRemote) UserID() string        { return f.userID }

func (f *fakeLibraryRemote) ListPhotos(context.Context) ([]models.PhotoRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.photos, nil
}

func (f *fakeLibraryRemote) ListEdits(context.Context) ([]models.PhotoRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.edits, nil
}

func (f *fakeLibraryRemote) DeleteRecord(_ context.Context, collection models.CollectionType, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(collection) + "/" + remoteID
	if err, ok := f.deleteErr[key]; ok {
		return err
	}
	f.deleted = append(f.deleted, [2]string{string(collection), remoteID})
	return nil
}

func notFoundErr() error {
	return &remote.APIError{Status: http.StatusNotFound, Message: "not found"}
}

func newLibrary(repo *fakeLocalRepo, rem *fakeLibraryRemote) *LibraryService {
	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	return NewLibraryService(repo, rem, nil, NewReconcileService(), cache, NewImageService(), nil, nil)
}

func TestLibrary_GetPhotos_MergesBothStores(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLocalRepo(localRecord("L1", ts, 100, 100))
	rem := &fakeLibraryRemote{
		authed: true,
		userID: "user1",
		photos: []models.PhotoRecord{remoteRecord("R1", ts.Add(time.Hour), 640, 480)},
	}

	svc := newLibrary(repo, rem)
	resp, err := svc.GetPhotos(context.Background())
	require.NoError(t, err)

	assert.False(t, resp.FromCache)
	assert.Equal(t, 2, resp.Count)
}

func TestLibrary_GetPhotos_SecondReadFromCache(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLocalRepo(localRecord("L1", ts, 100, 100))
	rem := &fakeLibraryRemote{authed: true, userID: "user1"}

	svc := newLibrary(repo, rem)

	first, err := svc.GetPhotos(context.Background())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := svc.GetPhotos(context.Background())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Photos, second.Photos)
}

func TestLibrary_GetPhotos_DegradesWhenRemoteFails(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLocalRepo(localRecord("L1", ts, 100, 100))
	rem := &fakeLibraryRemote{authed: true, userID: "user1", listErr: models.ErrRemoteUnavailable}

	svc := newLibrary(repo, rem)
	resp, err := svc.GetPhotos(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, models.SyncLocalOnly, resp.Photos[0].SyncStatus)

	// The degraded view must not be cached as if it were authoritative
	resp, err = svc.GetPhotos(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
}

func TestLibrary_GetPhotos_AnonymousLocalOnly(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLocalRepo(localRecord("L1", ts, 100, 100))
	rem := &fakeLibraryRemote{authed: false}

	svc := newLibrary(repo, rem)
	resp, err := svc.GetPhotos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
}

type countingTrigger struct {
	mu      sync.Mutex
	reasons []string
}

func (c *countingTrigger) Trigger(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
	return true
}

func TestLibrary_Capture(t *testing.T) {
	repo := newFakeLocalRepo()
	rem := &fakeLibraryRemote{authed: true, userID: "user1"}
	trigger := &countingTrigger{}

	cache := NewPhotoCache(newFakeCacheRepo(), 5*time.Minute)
	svc := NewLibraryService(repo, rem, nil, NewReconcileService(), cache, NewImageService(), trigger, nil)

	data := jpegBytes(t, 120, 80)
	photo, err := svc.Capture(context.Background(), data)
	require.NoError(t, err)

	assert.NotEmpty(t, photo.ID)
	assert.Equal(t, 120, photo.Width)
	assert.Equal(t, 80, photo.Height)
	assert.Equal(t, models.SyncLocalOnly, photo.SyncStatus)

	// Payload round-trips through the stored base64
	decoded, err := base64.StdEncoding.DecodeString(photo.Data)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	// The preview is generated at capture time and persisted with the record
	thumb, err := base64.StdEncoding.DecodeString(photo.Thumb)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	stored, err := repo.GetByID(context.Background(), photo.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, photo.Thumb, stored.Thumb)

	assert.Equal(t, []string{"capture"}, trigger.reasons)
}

func TestLibrary_Capture_RejectsBadPayloads(t *testing.T) {
	svc := newLibrary(newFakeLocalRepo(), &fakeLibraryRemote{})

	_, err := svc.Capture(context.Background(), nil)
	assert.Equal(t, models.ErrEmptyData, err)

	_, err = svc.Capture(context.Background(), []byte("not an image"))
	assert.Error(t, err)
}

func TestLibrary_Delete_RemoteFirst(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lp := localRecord("L1", ts, 100, 100)
	lp.RemoteID = "R1"
	lp.SyncStatus = models.SyncSynced
	repo := newFakeLocalRepo(lp)
	rem := &fakeLibraryRemote{authed: true, userID: "user1"}

	svc := newLibrary(repo, rem)
	require.NoError(t, svc.Delete(context.Background(), "L1"))

	assert.Equal(t, [][2]string{{"photos", "R1"}}, rem.deleted)
	gone, _ := repo.GetByID(context.Background(), "L1")
	assert.Nil(t, gone)
}

func TestLibrary_Delete_FailClosed(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lp := localRecord("L1", ts, 100, 100)
	lp.RemoteID = "R1"
	lp.SyncStatus = models.SyncSynced
	repo := newFakeLocalRepo(lp)
	rem := &fakeLibraryRemote{
		authed:    true,
		userID:    "user1",
		deleteErr: map[string]error{"photos/R1": &remote.APIError{Status: http.StatusInternalServerError}},
	}

	svc := newLibrary(repo, rem)
	err := svc.Delete(context.Background(), "L1")
	assert.Equal(t, models.ErrRemoteDeleteFailed, err)

	// The local copy survives a failed remote delete
	kept, _ := repo.GetByID(context.Background(), "L1")
	assert.NotNil(t, kept)
}

func TestLibrary_Delete_AlternateCollectionFallback(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lp := localRecord("L1", ts, 100, 100)
	lp.RemoteID = "R1"
	lp.SyncStatus = models.SyncSynced
	repo := newFakeLocalRepo(lp)
	rem := &fakeLibraryRemote{
		authed:    true,
		userID:    "user1",
		deleteErr: map[string]error{"photos/R1": notFoundErr()},
	}

	svc := newLibrary(repo, rem)
	require.NoError(t, svc.Delete(context.Background(), "L1"))

	// Fell through to the edits collection
	assert.Equal(t, [][2]string{{"edits", "R1"}}, rem.deleted)
}

func TestLibrary_Delete_RemoteOnly(t *testing.T) {
	repo := newFakeLocalRepo()
	rem := &fakeLibraryRemote{authed: true, userID: "user1"}

	svc := newLibrary(repo, rem)
	require.NoError(t, svc.Delete(context.Background(), models.LocalIDForRemote("R7")))
	assert.Equal(t, [][2]string{{"photos", "R7"}}, rem.deleted)
}

func TestLibrary_Delete_UnknownID(t *testing.T) {
	svc := newLibrary(newFakeLocalRepo(), &fakeLibraryRemote{authed: true, userID: "user1"})
	err := svc.Delete(context.Background(), "no-such-id")
	assert.Equal(t, models.ErrPhotoNotFound, err)
}

func TestLibrary_Delete_LocalOnlySkipsRemote(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLocalRepo(localRecord("L1", ts, 100, 100))
	rem := &fakeLibraryRemote{authed: true, userID: "user1"}

	svc := newLibrary(repo, rem)
	require.NoError(t, svc.Delete(context.Background(), "L1"))
	assert.Empty(t, rem.deleted)
}

func TestLibrary_WatchEdits_RequiresSession(t *testing.T) {
	svc := newLibrary(newFakeLocalRepo(), &fakeLibraryRemote{authed: false})
	_, err := svc.WatchEdits(context.Background())
	assert.Equal(t, models.ErrNotAuthenticated, err)
}
