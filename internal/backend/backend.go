// Package backend is the client for the cashier backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/cashier/internal/constants"
)

// Client talks to the cashier backend on behalf of one operator.
type Client struct {
	URL              string
	parsedURL        *url.URL
	httpClient       *http.Client
	recogniseTimeout time.Duration
	captureDir       string
	now              func() time.Time

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRecogniseTimeout bounds recognition uploads.
func WithRecogniseTimeout(d time.Duration) Option {
	return func(c *Client) { c.recogniseTimeout = d }
}

// WithClock overrides the time source used for timestamps and filenames.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client without a token. Call Login or SetToken before
// using authenticated endpoints.
func New(rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", rawURL)
	}
	c := &Client{
		URL:              parsed.String(),
		parsedURL:        parsed,
		httpClient:       http.DefaultClient,
		recogniseTimeout: constants.RecogniseTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromToken creates a client from an existing operator token.
func NewFromToken(rawURL, token string, opts ...Option) (*Client, error) {
	c, err := New(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	c.SetToken(token)
	return c, nil
}

// Token returns the current operator token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the operator token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// resolveURL builds a full URL from the base URL and the given path segments.
// A trailing slash on the last segment is preserved.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	result := c.parsedURL.JoinPath(pathSegments...).String()
	if strings.HasSuffix(pathSegments[len(pathSegments)-1], "/") && !strings.HasSuffix(result, "/") {
		result += "/"
	}
	return result
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := strings.ReplaceAll(strings.Trim(endpoint, "/"), "/", "_")
	timestamp := c.now().Format("20060102_150405")
	filename = fmt.Sprintf("%s_%s_%s.json", filename, timestamp, uuid.NewString()[:8])

	path := filepath.Join(c.captureDir, filename)

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	// WriteFile error is non-critical for capturing - log and continue
	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}

// Login authenticates the operator and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	resp, err := doJSON[loginResponse](ctx, c, "login", http.MethodPost, "cashier/login", creds, false)
	if err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

