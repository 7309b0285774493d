package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/models"
)

// APIError is a non-2xx response from the remote store
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote store error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether the error is a remote 404
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// IsAuthError reports whether the error is a remote 401/403
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// Client talks to the BaaS collections: photos, edits, users (token
// ledger), orders. All calls require an authenticated session except Ping.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.RWMutex
	token    string
	userID   string
	onAuth   func(signedIn bool)
}

// NewClient creates a remote store client from configuration
func NewClient(cfg config.Remote) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      cfg.AuthToken,
	}
}

// OnAuthChange registers a callback invoked on sign-in/sign-out transitions
func (c *Client) OnAuthChange(fn func(signedIn bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuth = fn
}

// UserID returns the authenticated principal, or empty
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// IsAuthenticated reports whether a session is established
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.userID != ""
}

// Token returns the current session token (used by the realtime channel)
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticate establishes a session with identity/password and resolves
// the principal. With a pre-issued token it only resolves the principal.
func (c *Client) Authenticate(ctx context.Context, identity, password string) error {
	if c.Token() == "" {
		body, err := json.Marshal(map[string]string{
			"identity": identity,
			"password": password,
		})
		if err != nil {
			return err
		}

		var authResp struct {
			Token  string `json:"token"`
			Record struct {
				ID string `json:"id"`
			} `json:"record"`
		}
		if err := c.do(ctx, http.MethodPost, "/api/collections/users/auth-with-password", bytes.NewReader(body), "application/json", &authResp); err != nil {
			return err
		}

		c.mu.Lock()
		c.token = authResp.Token
		c.userID = authResp.Record.ID
		fn := c.onAuth
		c.mu.Unlock()

		if fn != nil {
			fn(true)
		}
		return nil
	}

	// Pre-issued token: resolve who we are
	var me struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/collections/users/records/me", nil, "", &me); err != nil {
		return err
	}

	c.mu.Lock()
	c.userID = me.ID
	fn := c.onAuth
	c.mu.Unlock()

	if fn != nil {
		fn(true)
	}
	return nil
}

// SignOut drops the session
func (c *Client) SignOut() {
	c.mu.Lock()
	c.token = ""
	c.userID = ""
	fn := c.onAuth
	c.mu.Unlock()

	if fn != nil {
		fn(false)
	}
}

// Ping checks connectivity to the remote store
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

// ListPhotos returns the caller's photo records, normalized
func (c *Client) ListPhotos(ctx context.Context) ([]models.PhotoRecord, error) {
	items, err := listAll[RemotePhoto](ctx, c, "photos")
	if err != nil {
		return nil, err
	}

	records := make([]models.PhotoRecord, len(items))
	for i, item := range items {
		records[i] = c.normalizePhoto(item)
	}
	return records, nil
}

// ListEdits returns the caller's completed and in-flight edit records, normalized
func (c *Client) ListEdits(ctx context.Context) ([]models.PhotoRecord, error) {
	items, err := listAll[RemoteEdit](ctx, c, "edits")
	if err != nil {
		return nil, err
	}

	records := make([]models.PhotoRecord, len(items))
	for i, item := range items {
		records[i] = c.normalizeEdit(item)
	}
	return records, nil
}

// GetEdit fetches one edit record
func (c *Client) GetEdit(ctx context.Context, editID string) (*RemoteEdit, error) {
	var edit RemoteEdit
	path := "/api/collections/edits/records/" + url.PathEscape(editID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &edit); err != nil {
		if IsNotFound(err) {
			return nil, models.ErrEditNotFound
		}
		return nil, err
	}
	return &edit, nil
}

// UploadPhoto creates a remote photo record from a local one and returns
// the assigned remote id. The local id travels as localRef so interrupted
// syncs remain reconcilable by explicit reference.
func (c *Client) UploadPhoto(ctx context.Context, photo *models.PhotoRecord) (string, error) {
	if !c.IsAuthenticated() {
		return "", models.ErrNotAuthenticated
	}

	raw, err := base64.StdEncoding.DecodeString(photo.Data)
	if err != nil {
		return "", fmt.Errorf("invalid photo payload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"localRef": photo.ID,
		"taken":    photo.Timestamp.UTC().Format(time.RFC3339),
		"width":    fmt.Sprintf("%d", photo.Width),
		"height":   fmt.Sprintf("%d", photo.Height),
		"user":     c.UserID(),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", photo.ID+".jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}

	// The capture-time preview rides along so the remote record serves a
	// thumb URL without a server-side resize pass
	if photo.Thumb != "" {
		thumbRaw, err := base64.StdEncoding.DecodeString(photo.Thumb)
		if err != nil {
			return "", fmt.Errorf("invalid thumbnail payload: %w", err)
		}
		thumbPart, err := writer.CreateFormFile("thumb", photo.ID+"_thumb.jpg")
		if err != nil {
			return "", err
		}
		if _, err := thumbPart.Write(thumbRaw); err != nil {
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		return "", err
	}

	var created RemotePhoto
	if err := c.do(ctx, http.MethodPost, "/api/collections/photos/records", &buf, writer.FormDataContentType(), &created); err != nil {
		return "", err
	}

	return created.ID, nil
}

// DeleteRecord deletes a record from a collection. Callers handle the
// alternate-collection fallback.
func (c *Client) DeleteRecord(ctx context.Context, collection models.CollectionType, remoteID string) error {
	path := fmt.Sprintf("/api/collections/%s/records/%s", collection, url.PathEscape(remoteID))
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// GetTokenBalance reads the caller's ledger balance
func (c *Client) GetTokenBalance(ctx context.Context) (int, error) {
	if !c.IsAuthenticated() {
		return 0, models.ErrNotAuthenticated
	}

	var user struct {
		Tokens int `json:"tokens"`
	}
	path := "/api/collections/users/records/" + url.PathEscape(c.UserID())
	if err := c.do(ctx, http.MethodGet, path, nil, "", &user); err != nil {
		return 0, err
	}
	return user.Tokens, nil
}

// SpendTokens debits the ledger and returns the remaining balance. The
// remote store rejects overdrafts; that surfaces as ErrInsufficientTokens.
func (c *Client) SpendTokens(ctx context.Context, amount int) (int, error) {
	if !c.IsAuthenticated() {
		return 0, models.ErrNotAuthenticated
	}

	body, err := json.Marshal(map[string]int{"tokens-": amount})
	if err != nil {
		return 0, err
	}

	var user struct {
		Tokens int `json:"tokens"`
	}
	path := "/api/collections/users/records/" + url.PathEscape(c.UserID())
	if err := c.do(ctx, http.MethodPatch, path, bytes.NewReader(body), "application/json", &user); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusBadRequest {
			return 0, models.ErrInsufficientTokens
		}
		return 0, err
	}
	return user.Tokens, nil
}

// RefundTokens credits the ledger back, used when an order fails after the
// debit already went through.
func (c *Client) RefundTokens(ctx context.Context, amount int) error {
	if !c.IsAuthenticated() {
		return models.ErrNotAuthenticated
	}

	body, err := json.Marshal(map[string]int{"tokens+": amount})
	if err != nil {
		return err
	}

	path := "/api/collections/users/records/" + url.PathEscape(c.UserID())
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(body), "application/json", nil)
}

// CreateOrder places a print order and returns its remote id
func (c *Client) CreateOrder(ctx context.Context, order *models.PrintOrder) (string, error) {
	if !c.IsAuthenticated() {
		return "", models.ErrNotAuthenticated
	}

	body, err := json.Marshal(map[string]interface{}{
		"user":       c.UserID(),
		"edits":      order.EditIDs,
		"quantity":   order.Quantity,
		"tokenCost":  order.TokenCost,
		"status":     order.Status,
		"shippingTo": order.ShippingTo,
	})
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/collections/orders/records", bytes.NewReader(body), "application/json", &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// listAll pages through a collection filtered to the current principal
func listAll[T any](ctx context.Context, c *Client, collection string) ([]T, error) {
	if !c.IsAuthenticated() {
		return nil, models.ErrNotAuthenticated
	}

	filter := fmt.Sprintf("user='%s'", c.UserID())
	var items []T

	for page := 1; ; page++ {
		path := fmt.Sprintf("/api/collections/%s/records?page=%d&perPage=200&filter=%s",
			collection, page, url.QueryEscape(filter))

		var resp listResponse[T]
		if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
			return nil, err
		}

		items = append(items, resp.Items...)
		if len(items) >= resp.TotalItems || len(resp.Items) == 0 {
			break
		}
	}

	return items, nil
}

// do issues one request and decodes the response into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Message != "" {
			apiErr.Message = errBody.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
