package remote

import (
	"fmt"
	"time"

	"github.com/printapic/syncd/internal/models"
)

// RemotePhoto is the wire shape of a record in the photos collection
type RemotePhoto struct {
	ID       string    `json:"id"`
	LocalRef string    `json:"localRef,omitempty"` // client id set on upload
	File     string    `json:"file"`
	Thumb    string    `json:"thumb,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Taken    time.Time `json:"taken,omitempty"` // capture time reported by the client
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// RemoteEdit is the wire shape of a record in the edits collection
type RemoteEdit struct {
	ID         string    `json:"id"`
	PhotoID    string    `json:"photo"`
	Status     string    `json:"status"`
	TokensUsed int       `json:"tokensUsed"`
	ResultFile string    `json:"resultFile,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

// listResponse is the paginated list envelope the remote store returns
type listResponse[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	Items      []T `json:"items"`
}

// fileURL builds the public URL for a stored file
func (c *Client) fileURL(collection, recordID, filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/files/%s/%s/%s", c.baseURL, collection, recordID, filename)
}

// EditFileURL builds the public URL for an edit's result file
func (c *Client) EditFileURL(editID, filename string) string {
	return c.fileURL("edits", editID, filename)
}

// normalizePhoto converts a remote photo record into the merged model. The
// record enters reconciliation as remote-only; binding to a local record is
// the engine's job.
func (c *Client) normalizePhoto(rp RemotePhoto) models.PhotoRecord {
	return models.PhotoRecord{
		ID:         models.LocalIDForRemote(rp.ID),
		RemoteID:   rp.ID,
		LocalRef:   rp.LocalRef,
		RemoteURL:  c.fileURL("photos", rp.ID, rp.File),
		ThumbURL:   c.fileURL("photos", rp.ID, rp.Thumb),
		Timestamp:  rp.Taken,
		Created:    rp.Created,
		Width:      rp.Width,
		Height:     rp.Height,
		SyncStatus: models.SyncRemoteOnly,
		Collection: models.CollectionPhotos,
	}
}

// normalizeEdit converts a remote edit record into the merged model
func (c *Client) normalizeEdit(re RemoteEdit) models.PhotoRecord {
	return models.PhotoRecord{
		ID:         models.LocalIDForRemote(re.ID),
		RemoteID:   re.ID,
		RemoteURL:  c.fileURL("edits", re.ID, re.ResultFile),
		ThumbURL:   c.fileURL("edits", re.ID, re.ResultFile),
		Created:    re.Created,
		Width:      re.Width,
		Height:     re.Height,
		SyncStatus: models.SyncRemoteOnly,
		Collection: models.CollectionEdits,
		Processing: &models.ProcessingInfo{
			Status:     re.Status,
			TokensUsed: re.TokensUsed,
		},
	}
}
