package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/repository"
	"github.com/printapic/syncd/internal/services"
)

// SyncHandler exposes the background sync coordinator
type SyncHandler struct {
	coordinator *services.SyncCoordinator
	repo        repository.LocalPhotoRepo
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(coordinator *services.SyncCoordinator, repo repository.LocalPhotoRepo) *SyncHandler {
	return &SyncHandler{coordinator: coordinator, repo: repo}
}

// Status reports coordinator state and backlog
// @Summary Sync status
// @Description Returns the coordinator state, the pending local-only count, and the outcome of the last batch.
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusResponse "Current sync status"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Security ApiKeyAuth
// @Router /api/sync [get]
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	state, lastBatch, lastSyncAt := h.coordinator.Snapshot()

	localOnly, err := h.repo.CountLocalOnly(r.Context())
	if err != nil {
		observability.WithContext(r.Context()).Errorf("sync status: counting backlog: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to read sync status.")
		return
	}

	resp := models.SyncStatusResponse{
		State:     state,
		LocalOnly: localOnly,
		LastBatch: lastBatch,
	}
	if !lastSyncAt.IsZero() {
		resp.LastSyncAt = &lastSyncAt
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Trigger requests an immediate sync batch
// @Summary Trigger sync
// @Description Requests an immediate sync batch. If one is already running the request is queued behind it.
// @Tags sync
// @Produce json
// @Success 202 {object} models.TriggerSyncResponse "Trigger accepted"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Security ApiKeyAuth
// @Router /api/sync [post]
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	started := h.coordinator.Trigger("manual")

	h.respondJSON(w, http.StatusAccepted, models.TriggerSyncResponse{
		Started: started,
		State:   h.coordinator.State(),
	})
}

func (h *SyncHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *SyncHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
