package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/remote"
)

// Edit job states as reported by the remote store.
const (
	EditPending    = "pending"
	EditProcessing = "processing"
	EditDone       = "done"
	EditFailed     = "failed"
)

// EditSource reads transform job records from the remote store.
type EditSource interface {
	GetEdit(ctx context.Context, editID string) (*remote.RemoteEdit, error)
	EditFileURL(editID, filename string) string
}

// ProcessingService dispatches AI transforms to the external processing API
// and tracks their progress through the remote store's edits collection. The
// processing API only accepts the job; the resulting edit record is what
// carries status and the finished file.
type ProcessingService struct {
	edits      EditSource
	httpClient *http.Client
	baseURL    string
	bearer     string
	metrics    *observability.BusinessMetrics

	pollInterval time.Duration
}

// NewProcessingService creates the service. With client credentials
// configured the transform API is called through an auto-refreshing OAuth2
// client; otherwise a static bearer token is attached per request.
func NewProcessingService(edits EditSource, metrics *observability.BusinessMetrics, cfg config.Processing) *ProcessingService {
	svc := &ProcessingService{
		edits:        edits,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		bearer:       cfg.BearerToken,
		metrics:      metrics,
		pollInterval: time.Duration(cfg.PollSecs) * time.Second,
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = 2 * time.Second
	}

	if cfg.ClientID != "" {
		oauthCfg := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		svc.httpClient = oauthCfg.Client(context.Background())
		svc.bearer = ""
	} else {
		svc.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return svc
}

// ProgressForStatus maps a job state to a coarse progress percentage for
// display. A failed job reads as zero so the UI resets its bar.
func ProgressForStatus(status string) int {
	switch status {
	case EditPending:
		return 25
	case EditProcessing:
		return 75
	case EditDone:
		return 100
	default:
		return 0
	}
}

// Dispatch submits a transform job for a synced photo and returns the edit
// record id that will track it. Token accounting happens remotely when the
// edit record is created.
func (s *ProcessingService) Dispatch(ctx context.Context, photoRemoteID string, req models.TransformRequest) (string, error) {
	if photoRemoteID == "" {
		return "", models.ErrPhotoNotFound
	}
	if req.Operation == "" {
		return "", fmt.Errorf("%w: missing operation", models.ErrProcessingFailed)
	}

	body, err := json.Marshal(map[string]string{
		"photo":     photoRemoteID,
		"operation": req.Operation,
		"promptKey": req.PromptKey,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/process-image", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.bearer)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProcessingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if s.metrics != nil {
			s.metrics.RecordTransform(ctx, req.Operation, false)
		}
		return "", fmt.Errorf("%w: status %d: %s", models.ErrProcessingFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		EditID string `json:"editId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProcessingFailed, err)
	}
	if out.EditID == "" {
		return "", fmt.Errorf("%w: no edit id in response", models.ErrProcessingFailed)
	}

	if s.metrics != nil {
		s.metrics.RecordTransform(ctx, req.Operation, true)
	}
	observability.WithContext(ctx).WithField("edit_id", out.EditID).Info("transform dispatched")
	return out.EditID, nil
}

// Status reads the job once and maps it to the display shape
func (s *ProcessingService) Status(ctx context.Context, editID string) (*models.EditStatusResponse, error) {
	edit, err := s.edits.GetEdit(ctx, editID)
	if err != nil {
		return nil, err
	}

	status := &models.EditStatusResponse{
		EditID:   edit.ID,
		Status:   edit.Status,
		Progress: ProgressForStatus(edit.Status),
	}
	if edit.Status == EditDone {
		status.ResultURL = s.edits.EditFileURL(edit.ID, edit.ResultFile)
	}
	if edit.Status == EditFailed {
		status.Message = "processing failed"
	}
	return status, nil
}

// WaitForEdit blocks until the job reaches a terminal state or ctx is
// cancelled. The first check happens immediately so an already finished job
// resolves without waiting a full interval.
func (s *ProcessingService) WaitForEdit(ctx context.Context, editID string) (*models.EditStatusResponse, error) {
	status, err := s.Status(ctx, editID)
	if err != nil {
		return nil, err
	}
	if terminal(status.Status) {
		return status, nil
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err = s.Status(ctx, editID)
			if err != nil {
				return nil, err
			}
			if terminal(status.Status) {
				return status, nil
			}
		}
	}
}

func terminal(status string) bool {
	return status == EditDone || status == EditFailed
}
