package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/services"
)

// LibraryHandler handles gallery endpoints
type LibraryHandler struct {
	library *services.LibraryService
}

// NewLibraryHandler creates a new LibraryHandler
func NewLibraryHandler(library *services.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// List returns the merged photo list
// @Summary List photos
// @Description Returns the merged view of local and remote photos, newest first. Served from cache when a fresh entry exists.
// @Tags photos
// @Produce json
// @Success 200 {object} models.PhotoListResponse "Merged photo list"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 500 {object} models.ErrorResponse "Server error"
// @Security ApiKeyAuth
// @Router /api/photos [get]
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.library.GetPhotos(r.Context())
	if err != nil {
		observability.WithContext(r.Context()).Errorf("list photos: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to build photo list.")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Capture stores a new photo
// @Summary Capture a photo
// @Description Stores an uploaded image as a local record and schedules its upload to the remote store.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file (JPEG, PNG or HEIC)"
// @Success 201 {object} models.CaptureResponse "Photo stored"
// @Failure 400 {object} models.ErrorResponse "Invalid or unreadable image"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 500 {object} models.ErrorResponse "Server error"
// @Security ApiKeyAuth
// @Router /api/photos [post]
func (h *LibraryHandler) Capture(w http.ResponseWriter, r *http.Request) {
	data, err := readCapturePayload(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "No image provided.")
		return
	}

	photo, err := h.library.Capture(r.Context(), data)
	if err != nil {
		switch err {
		case models.ErrEmptyData, models.ErrInvalidDimensions:
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			observability.WithContext(r.Context()).Errorf("capture: %v", err)
			h.respondError(w, http.StatusBadRequest, "Image could not be decoded.")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, models.CaptureResponse{Photo: *photo})
}

// Delete removes a photo from both stores
// @Summary Delete a photo
// @Description Deletes the remote copy first, then the local one. A failed remote delete keeps the local copy.
// @Tags photos
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} models.DeleteResponse "Photo deleted"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Failure 502 {object} models.ErrorResponse "Remote delete failed"
// @Security ApiKeyAuth
// @Router /api/photos/{id} [delete]
func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "Photo ID is required.")
		return
	}

	if err := h.library.Delete(r.Context(), id); err != nil {
		switch err {
		case models.ErrPhotoNotFound:
			h.respondError(w, http.StatusNotFound, "Photo not found.")
		case models.ErrNotAuthenticated:
			h.respondError(w, http.StatusConflict, "No remote session; cannot delete a synced photo.")
		case models.ErrRemoteDeleteFailed:
			h.respondError(w, http.StatusBadGateway, err.Error())
		default:
			observability.WithContext(r.Context()).Errorf("delete photo: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to delete photo.")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: true, ID: id})
}

// readCapturePayload accepts either a multipart "file" field or a raw body
func readCapturePayload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(50 << 20); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(io.LimitReader(r.Body, 50<<20))
}

func (h *LibraryHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *LibraryHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
