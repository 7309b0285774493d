package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEditSource replays a scripted sequence of job observations
type fakeEditSource struct {
	mu     sync.Mutex
	states []string
	calls  int
	result string
}

func (f *fakeEditSource) GetEdit(_ context.Context, editID string) (*remote.RemoteEdit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.states) {
		idx = len(f.states) - 1
	}
	f.calls++

	return &remote.RemoteEdit{
		ID:         editID,
		Status:     f.states[idx],
		ResultFile: f.result,
	}, nil
}

func (f *fakeEditSource) EditFileURL(editID, filename string) string {
	if filename == "" {
		return ""
	}
	return "https://remote.example/api/files/edits/" + editID + "/" + filename
}

func newDispatchService(t *testing.T, handler http.Handler) *ProcessingService {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewProcessingService(&fakeEditSource{}, nil, config.Processing{
		BaseURL:     srv.URL,
		BearerToken: "proc-token",
		PollSecs:    1,
	})
}

func TestProcessing_Dispatch(t *testing.T) {
	svc := newDispatchService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process-image", r.URL.Path)
		assert.Equal(t, "Bearer proc-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "R1", body["photo"])
		assert.Equal(t, "cartoonify", body["operation"])

		json.NewEncoder(w).Encode(map[string]string{"editId": "E1"})
	}))

	editID, err := svc.Dispatch(context.Background(), "R1", models.TransformRequest{Operation: "cartoonify"})
	require.NoError(t, err)
	assert.Equal(t, "E1", editID)
}

func TestProcessing_DispatchRejected(t *testing.T) {
	svc := newDispatchService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported operation", http.StatusUnprocessableEntity)
	}))

	_, err := svc.Dispatch(context.Background(), "R1", models.TransformRequest{Operation: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProcessingFailed)
}

func TestProcessing_DispatchValidation(t *testing.T) {
	svc := newDispatchService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := svc.Dispatch(context.Background(), "", models.TransformRequest{Operation: "cartoonify"})
	assert.Equal(t, models.ErrPhotoNotFound, err)

	_, err = svc.Dispatch(context.Background(), "R1", models.TransformRequest{})
	assert.ErrorIs(t, err, models.ErrProcessingFailed)
}

func TestProcessing_ProgressMapping(t *testing.T) {
	assert.Equal(t, 25, ProgressForStatus(EditPending))
	assert.Equal(t, 75, ProgressForStatus(EditProcessing))
	assert.Equal(t, 100, ProgressForStatus(EditDone))
	assert.Equal(t, 0, ProgressForStatus(EditFailed))
	assert.Equal(t, 0, ProgressForStatus("garbage"))
}

func TestProcessing_StatusDone(t *testing.T) {
	edits := &fakeEditSource{states: []string{EditDone}, result: "out.jpg"}
	svc := &ProcessingService{edits: edits, pollInterval: time.Millisecond}

	status, err := svc.Status(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)
	assert.Contains(t, status.ResultURL, "/edits/E1/out.jpg")
}

func TestProcessing_WaitResolvesAfterSecondCheck(t *testing.T) {
	// First observation sees the job in flight, the second sees it finished
	edits := &fakeEditSource{states: []string{EditProcessing, EditDone}, result: "out.jpg"}
	svc := &ProcessingService{edits: edits, pollInterval: time.Millisecond}

	status, err := svc.WaitForEdit(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, EditDone, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 2, edits.calls)
}

func TestProcessing_WaitImmediateWhenAlreadyDone(t *testing.T) {
	edits := &fakeEditSource{states: []string{EditDone}}
	svc := &ProcessingService{edits: edits, pollInterval: time.Hour}

	start := time.Now()
	status, err := svc.WaitForEdit(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, EditDone, status.Status)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, edits.calls)
}

func TestProcessing_WaitSurfacesFailure(t *testing.T) {
	edits := &fakeEditSource{states: []string{EditPending, EditFailed}}
	svc := &ProcessingService{edits: edits, pollInterval: time.Millisecond}

	status, err := svc.WaitForEdit(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, EditFailed, status.Status)
	assert.Equal(t, 0, status.Progress)
	assert.NotEmpty(t, status.Message)
}

func TestProcessing_WaitCancelled(t *testing.T) {
	edits := &fakeEditSource{states: []string{EditProcessing}}
	svc := &ProcessingService{edits: edits, pollInterval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.WaitForEdit(ctx, "E1")
	assert.ErrorIs(t, err, context.Canceled)
}
