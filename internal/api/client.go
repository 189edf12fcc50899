// Package api is the client for the questionnaire backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// Client talks JSON over HTTP to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	mu          sync.Mutex
	token       string
	lastReceipt *Receipt
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the authentication token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ErrorResponse is the error body written by the backend.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs a request and decodes a 2xx JSON body into target.
func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeAPITransport, "failed to encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAPITransport, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAPITransport, fmt.Sprintf("%s %s failed", method, path), err).
			WithSuggestion(fmt.Sprintf("Check that the backend at %s is running", c.baseURL))
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return parseResponse(resp, target)
}

func parseResponse(resp *http.Response, target any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

		detail := strings.TrimSpace(string(body))
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			switch {
			case errResp.Message != "":
				detail = errResp.Message
			case errResp.Error != "":
				detail = errResp.Error
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return errors.NewUnauthorizedError(detail)
		}
		return errors.Wrap(errors.ErrCodeAPIStatus, "request failed", &StatusError{Status: resp.StatusCode, Detail: detail})
	}

	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.Wrap(errors.ErrCodeAPIDecode, "failed to decode response", err)
	}
	return nil
}

// StatusError carries the HTTP status of a failed request.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}
