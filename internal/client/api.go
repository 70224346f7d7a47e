package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/promptconduit/sessionsync/internal/envelope"
)

const (
	PathSessionUpsert = "/sync/session"
	PathBatchUpsert   = "/sync/batch"
	PathHealth        = "/health"
)

// APIResponse represents a response from the API
type APIResponse struct {
	Success    bool
	StatusCode int
	Data       map[string]interface{}
	Error      string
}

// SyncError is returned when the backend answers with a non-2xx status
type SyncError struct {
	StatusCode int
	Body       string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("Sync failed: %d - %s", e.StatusCode, e.Body)
}

// Client is the HTTP client for the sync backend
type Client struct {
	config     *Config
	httpClient *http.Client
	version    string
	baseURL    string
}

// NewClient creates a new API client. A zero timeout means no client-side timeout.
func NewClient(config *Config, version string) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		version: version,
		baseURL: SiteURL(config.APIURL),
	}
}

// SiteURL converts a configured endpoint into the base URL requests go to.
// Deployment URLs on the .convex.cloud domain serve HTTP actions from .convex.site.
func SiteURL(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return strings.Replace(endpoint, ".convex.cloud", ".convex.site", 1)
}

// BaseURL returns the resolved base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UpsertSession creates or replaces the session aggregate
func (c *Client) UpsertSession(ctx context.Context, session *envelope.Session) error {
	return c.post(ctx, PathSessionUpsert, session)
}

// UpsertBatch sends sessions and messages in one request
func (c *Client) UpsertBatch(ctx context.Context, batch *envelope.Batch) error {
	return c.post(ctx, PathBatchUpsert, batch)
}

// Health checks that the backend is reachable and the API key is accepted
func (c *Client) Health(ctx context.Context) *APIResponse {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return &APIResponse{Success: false, Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIResponse{Success: false, Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	result := &APIResponse{
		StatusCode: resp.StatusCode,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	if len(body) > 0 {
		var data map[string]interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			result.Data = data
		}
	}

	if !result.Success {
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return result
}

// post sends payload as JSON. Anything other than 2xx becomes a *SyncError.
func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	if !c.config.IsConfigured() {
		return ErrNotConfigured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	body := jsonData
	if c.config.Compress {
		if body, err = gzipBytes(jsonData); err != nil {
			return fmt.Errorf("failed to compress payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	if c.config.Compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &SyncError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// setHeaders sets common HTTP headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("User-Agent", fmt.Sprintf("sessionsync/%s", c.version))
	req.Header.Set("X-Request-ID", uuid.NewString())
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
