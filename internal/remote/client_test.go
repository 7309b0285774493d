package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.Remote{BaseURL: srv.URL, TimeoutSecs: 5})
}

func TestClient_Authenticate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/collections/users/auth-with-password", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "kiosk@printapic.example", body["identity"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":  "tok123",
			"record": map[string]string{"id": "user1"},
		})
	}))

	var transitions []bool
	client.OnAuthChange(func(signedIn bool) { transitions = append(transitions, signedIn) })

	require.NoError(t, client.Authenticate(context.Background(), "kiosk@printapic.example", "secret"))
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "user1", client.UserID())
	assert.Equal(t, []bool{true}, transitions)

	client.SignOut()
	assert.False(t, client.IsAuthenticated())
	assert.Equal(t, []bool{true, false}, transitions)
}

func TestClient_ListPhotos(t *testing.T) {
	taken := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("filter"), "user1")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"page": 1, "perPage": 200, "totalItems": 1,
			"items": []RemotePhoto{{
				ID:      "R1",
				File:    "R1.jpg",
				Thumb:   "R1_thumb.jpg",
				Width:   100,
				Height:  200,
				Taken:   taken,
				Created: taken.Add(2 * time.Second),
			}},
		})
	}))
	client.token = "tok123"
	client.userID = "user1"

	photos, err := client.ListPhotos(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 1)

	p := photos[0]
	assert.Equal(t, models.LocalIDForRemote("R1"), p.ID)
	assert.Equal(t, "R1", p.RemoteID)
	assert.Equal(t, models.SyncRemoteOnly, p.SyncStatus)
	assert.Equal(t, models.CollectionPhotos, p.Collection)
	assert.Contains(t, p.RemoteURL, "/api/files/photos/R1/R1.jpg")
	assert.Equal(t, 100, p.Width)
}

func TestClient_ListPhotos_Unauthenticated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a session")
	}))

	_, err := client.ListPhotos(context.Background())
	assert.Equal(t, models.ErrNotAuthenticated, err)
}

func TestClient_UploadPhoto(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("not-really-a-jpeg"))
	thumb := base64.StdEncoding.EncodeToString([]byte("tiny-preview"))

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/collections/photos/records", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		// The client id travels as the explicit back-reference
		assert.Equal(t, "L1", r.FormValue("localRef"))
		assert.Equal(t, "user1", r.FormValue("user"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		// The capture-time preview travels as its own file part
		thumbFile, header, err := r.FormFile("thumb")
		require.NoError(t, err)
		thumbFile.Close()
		assert.Equal(t, "L1_thumb.jpg", header.Filename)

		json.NewEncoder(w).Encode(RemotePhoto{ID: "R9"})
	}))
	client.token = "tok123"
	client.userID = "user1"

	remoteID, err := client.UploadPhoto(context.Background(), &models.PhotoRecord{
		ID:        "L1",
		Data:      payload,
		Thumb:     thumb,
		Timestamp: time.Now().UTC(),
		Width:     10,
		Height:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, "R9", remoteID)
}

func TestClient_DeleteRecord_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"record not found"}`, http.StatusNotFound)
	}))
	client.token = "tok123"
	client.userID = "user1"

	err := client.DeleteRecord(context.Background(), models.CollectionPhotos, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_SpendTokens_Insufficient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"balance too low"}`, http.StatusBadRequest)
	}))
	client.token = "tok123"
	client.userID = "user1"

	_, err := client.SpendTokens(context.Background(), 50)
	assert.Equal(t, models.ErrInsufficientTokens, err)
}
