package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/repository"
	"github.com/printapic/syncd/internal/services"
)

// ProcessingHandler handles AI transform endpoints
type ProcessingHandler struct {
	processing *services.ProcessingService
	repo       repository.LocalPhotoRepo
}

// NewProcessingHandler creates a new ProcessingHandler
func NewProcessingHandler(processing *services.ProcessingService, repo repository.LocalPhotoRepo) *ProcessingHandler {
	return &ProcessingHandler{processing: processing, repo: repo}
}

// Transform dispatches an AI transform for a photo
// @Summary Transform a photo
// @Description Dispatches an AI transform job for a synced photo. The photo must already exist in the remote store.
// @Tags processing
// @Accept json
// @Produce json
// @Param id path string true "Photo ID"
// @Param request body models.TransformRequest true "Transform parameters"
// @Success 202 {object} models.TransformResponse "Transform dispatched"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Failure 409 {object} models.ErrorResponse "Photo not synced yet"
// @Failure 502 {object} models.ErrorResponse "Processing API error"
// @Security ApiKeyAuth
// @Router /api/photos/{id}/transform [post]
func (h *ProcessingHandler) Transform(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if req.Operation == "" {
		h.respondError(w, http.StatusBadRequest, "Operation is required.")
		return
	}

	remoteID, status, errMsg := h.resolveRemoteID(r, id)
	if errMsg != "" {
		h.respondError(w, status, errMsg)
		return
	}

	editID, err := h.processing.Dispatch(r.Context(), remoteID, req)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("transform dispatch: %v", err)
		h.respondError(w, http.StatusBadGateway, "Transform could not be dispatched.")
		return
	}

	h.respondJSON(w, http.StatusAccepted, models.TransformResponse{
		EditID:  editID,
		Message: "Transform dispatched; poll the edit for progress.",
	})
}

// resolveRemoteID maps a client photo id to its remote counterpart
func (h *ProcessingHandler) resolveRemoteID(r *http.Request, id string) (string, int, string) {
	photo, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("transform lookup: %v", err)
		return "", http.StatusInternalServerError, "Failed to look up photo."
	}

	if photo != nil {
		if photo.RemoteID == "" {
			return "", http.StatusConflict, "Photo is not synced yet; transforms need the remote copy."
		}
		return photo.RemoteID, 0, ""
	}

	if remoteID, ok := models.RemoteIDFromDerived(id); ok {
		return remoteID, 0, ""
	}
	return "", http.StatusNotFound, "Photo not found."
}

// EditStatus reports the state of a transform job
// @Summary Edit status
// @Description Returns a single observation of a transform job: status, progress percentage, and the result URL once done. Pass wait=true to block until the job finishes.
// @Tags processing
// @Produce json
// @Param id path string true "Edit ID"
// @Param wait query bool false "Block until the job reaches a terminal state"
// @Success 200 {object} models.EditStatusResponse "Job status"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 404 {object} models.ErrorResponse "Edit not found"
// @Failure 422 {object} models.EditStatusResponse "Job finished in the failed state"
// @Security ApiKeyAuth
// @Router /api/edits/{id} [get]
func (h *ProcessingHandler) EditStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var status *models.EditStatusResponse
	var err error
	if r.URL.Query().Get("wait") == "true" {
		status, err = h.processing.WaitForEdit(r.Context(), id)
	} else {
		status, err = h.processing.Status(r.Context(), id)
	}

	if err != nil {
		switch err {
		case models.ErrEditNotFound:
			h.respondError(w, http.StatusNotFound, "Edit not found.")
		case r.Context().Err():
			// Client went away mid-wait; nothing sensible to write
		default:
			observability.WithContext(r.Context()).Errorf("edit status: %v", err)
			h.respondError(w, http.StatusBadGateway, "Failed to read edit status.")
		}
		return
	}

	// Failed is terminal but not a success; the body still carries the details
	code := http.StatusOK
	if status.Status == services.EditFailed {
		code = http.StatusUnprocessableEntity
	}
	h.respondJSON(w, code, status)
}

func (h *ProcessingHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ProcessingHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
