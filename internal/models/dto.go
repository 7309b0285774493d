package models

import "time"

// HealthResponse is returned by health endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the error body shape for all API endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhotoListResponse is the merged gallery view
type PhotoListResponse struct {
	Photos    []PhotoRecord `json:"photos"`
	FromCache bool          `json:"fromCache"`
	Count     int           `json:"count"`
}

// CaptureResponse is returned after a successful capture/upload
type CaptureResponse struct {
	Photo PhotoRecord `json:"photo"`
}

// DeleteResponse reports the outcome of a delete
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// SyncStatusResponse reports coordinator state
type SyncStatusResponse struct {
	State      SyncState    `json:"state"`
	LocalOnly  int          `json:"localOnly"`
	LastBatch  *SyncSummary `json:"lastBatch,omitempty"`
	LastSyncAt *time.Time   `json:"lastSyncAt,omitempty"`
}

// TriggerSyncResponse reports whether a manual trigger started a batch
type TriggerSyncResponse struct {
	Started bool      `json:"started"`
	State   SyncState `json:"state"`
}

// TransformRequest dispatches an AI transform for a photo
type TransformRequest struct {
	Operation string `json:"operation"`
	PromptKey string `json:"promptKey"`
}

// TransformResponse is returned once the transform job is dispatched
type TransformResponse struct {
	EditID  string `json:"editId"`
	Message string `json:"message,omitempty"`
}

// EditStatusResponse is a single observation of a transform job
type EditStatusResponse struct {
	EditID    string `json:"editId"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	ResultURL string `json:"resultUrl,omitempty"`
}

// TokenBalanceResponse reports the remote ledger balance
type TokenBalanceResponse struct {
	UserID string `json:"userId"`
	Tokens int    `json:"tokens"`
}

// OrderRequest creates a print order
type OrderRequest struct {
	EditIDs    []string `json:"editIds"`
	Quantity   int      `json:"quantity"`
	ShippingTo string   `json:"shippingTo"`
}

// OrderResponse is returned after placing an order
type OrderResponse struct {
	Order  PrintOrder `json:"order"`
	Tokens int        `json:"tokens"` // remaining balance
}
