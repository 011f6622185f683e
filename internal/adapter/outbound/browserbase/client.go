// Package browserbase provides the outbound adapter for the Browserbase
// remote-browser REST API and the per-credential resource pool built on it.
package browserbase

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
)

// DefaultBaseURL is the public Browserbase API root.
const DefaultBaseURL = "https://api.browserbase.com/v1"

const (
	apiKeyHeader = "X-BB-API-Key"

	// maxResponseBodySize bounds API responses (logs can be large).
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	statusRequestRelease = "REQUEST_RELEASE"
)

// ErrNotFound is returned when the API reports that a session does not exist.
var ErrNotFound = errors.New("browserbase: not found")

// APIError is a non-2xx response from the Browserbase API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase: status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// BrowserSession is a remote browser as returned by the API.
type BrowserSession struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Status     string    `json:"status"`
	ConnectURL string    `json:"connectUrl"`
	Region     string    `json:"region,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// DebugInfo carries the live-view URLs of a remote browser.
type DebugInfo struct {
	DebuggerFullscreenURL string      `json:"debuggerFullscreenUrl"`
	DebuggerURL           string      `json:"debuggerUrl"`
	WSURL                 string      `json:"wsUrl"`
	Pages                 []DebugPage `json:"pages"`
}

// DebugPage is one open tab of a remote browser.
type DebugPage struct {
	ID                    string `json:"id"`
	URL                   string `json:"url"`
	Title                 string `json:"title"`
	DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
}

// LogEntry is one remote browser log line.
type LogEntry struct {
	Method    string          `json:"method"`
	PageID    int             `json:"pageId"`
	SessionID string          `json:"sessionId"`
	Timestamp int64           `json:"timestamp"`
	Request   json.RawMessage `json:"request,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Client talks to the Browserbase REST API. Credentials are supplied per call
// since every gateway session carries its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root (used by tests and self-hosted proxies).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient != nil && d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a Browserbase API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateSession starts a new remote browser in the credentials' project.
func (c *Client) CreateSession(ctx context.Context, creds credentials.Credentials) (*BrowserSession, error) {
	body := map[string]any{"projectId": creds.BrowserbaseProjectID}

	var out BrowserSession
	if err := c.do(ctx, creds, http.MethodPost, "/sessions", body, &out); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &out, nil
}

// ReleaseSession asks Browserbase to stop the remote browser.
func (c *Client) ReleaseSession(ctx context.Context, creds credentials.Credentials, id string) error {
	body := map[string]any{
		"projectId": creds.BrowserbaseProjectID,
		"status":    statusRequestRelease,
	}
	if err := c.do(ctx, creds, http.MethodPost, "/sessions/"+id, body, nil); err != nil {
		return fmt.Errorf("release session %s: %w", id, err)
	}
	return nil
}

// DebugURLs fetches the live-view URLs of a remote browser.
func (c *Client) DebugURLs(ctx context.Context, creds credentials.Credentials, id string) (*DebugInfo, error) {
	var out DebugInfo
	if err := c.do(ctx, creds, http.MethodGet, "/sessions/"+id+"/debug", nil, &out); err != nil {
		return nil, fmt.Errorf("debug urls for %s: %w", id, err)
	}
	return &out, nil
}

// Logs fetches the recorded log lines of a remote browser.
func (c *Client) Logs(ctx context.Context, creds credentials.Credentials, id string) ([]LogEntry, error) {
	var out []LogEntry
	if err := c.do(ctx, creds, http.MethodGet, "/sessions/"+id+"/logs", nil, &out); err != nil {
		return nil, fmt.Errorf("logs for %s: %w", id, err)
	}
	return out, nil
}

// do performs one JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, creds credentials.Credentials, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, creds.BrowserbaseAPIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
