// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend implements the REST client for the finchat backend:
// project directory, chat history, agent calls, and file upload.
//
// Failures surface immediately: a failed call resolves its placeholder
// with an error notice and the user decides whether to resend. The
// client never retries on its own.
package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout is the default timeout for control-plane requests.
	DefaultTimeout = 15 * time.Second

	// DefaultAgentTimeout is the default timeout for agent calls; model
	// inference routinely takes tens of seconds.
	DefaultAgentTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared transport for all backend requests.
// SECURITY: TLS verification required for production
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: false,
	},
}

// Error variables for common backend errors.
var (
	// ErrAuthFailed indicates the session token was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the project or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the local limiter refused the call.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnknownModel indicates the model is not in the lookup table.
	ErrUnknownModel = errors.New("unknown model")
)

// BackendError represents an error response from the backend API.
type BackendError struct {
	Message string
	Status  int
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Client is a client for communicating with the finchat backend.
type Client struct {
	baseURL string
	token   string

	// httpClient serves control-plane calls; agentClient carries the
	// longer inference timeout.
	httpClient  *http.Client
	agentClient *http.Client

	// limiter throttles agent calls; nil disables throttling.
	limiter *rate.Limiter

	maxUploadBytes int64
}

// New creates a backend client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		agentClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultAgentTimeout,
		},
		maxUploadBytes: 25 << 20,
	}
}

// WithToken sets the bearer session token for authenticated calls.
func (c *Client) WithToken(token string) *Client {
	c.token = strings.TrimSpace(token)
	return c
}

// WithTimeout sets the control-plane request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithAgentTimeout sets the agent call timeout.
func (c *Client) WithAgentTimeout(timeout time.Duration) *Client {
	c.agentClient.Timeout = timeout
	return c
}

// WithRateLimit caps agent calls per minute. 0 disables the limiter.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return c
}

// WithMaxUploadBytes caps the size of a single file upload.
func (c *Client) WithMaxUploadBytes(n int64) *Client {
	c.maxUploadBytes = n
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAuthenticated reports whether the client carries a session token.
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// =============================================================================
// SECURE LOGGING
// =============================================================================

// logRequest logs an API request without exposing sensitive data.
// Don't log headers (auth) or body (prompts are user data).
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs an API response with duration.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, resp.Status, duration)
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// setHeaders sets the required headers for backend requests.
func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "finchat/1.0")
}

// endpoint joins path segments onto the base URL.
func (c *Client) endpoint(segments ...string) (*url.URL, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	return base.JoinPath(segments...), nil
}

// do performs one request on the given client, logging it and reading
// the body with a size cap. No retries: a failure is reported to the
// caller as-is.
func (c *Client) do(client *http.Client, req *http.Request) (int, []byte, error) {
	c.setHeaders(req)
	c.logRequest(req)

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	// SECURITY: Clear Authorization header after the request to keep
	// it out of any downstream request logging.
	req.Header.Del("Authorization")

	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, duration)

	body, err := readResponse(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// readResponse reads the response body with size limits.
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// checkStatus converts HTTP error statuses to typed errors.
func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
		return ErrAuthFailed
	case http.StatusNotFound:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return ErrNotFound
	default:
		return &BackendError{Message: msg, Status: status}
	}
}

// waitAgentSlot blocks until the limiter admits an agent call.
func (c *Client) waitAgentSlot(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}
