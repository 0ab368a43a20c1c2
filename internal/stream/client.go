// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the chat client.
type ClientConfig struct {
	// BaseURL is the chat server base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// ChatPath is appended to BaseURL (default: /chat)
	ChatPath string

	// ConnectTimeout bounds dialing plus waiting for response headers (default: 30s)
	ConnectTimeout time.Duration

	// IdleTimeout aborts a reply that delivers no bytes for this long.
	// Zero disables the watchdog.
	IdleTimeout time.Duration

	// StrictUTF8 fails the stream on invalid UTF-8 instead of substituting U+FFFD
	StrictUTF8 bool

	// HTTPClient overrides the transport, mainly for tests
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8000",
		ChatPath:       "/chat",
		ConnectTimeout: 30 * time.Second,
		IdleTimeout:    60 * time.Second,
		StrictUTF8:     true,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming chat requests.
//
// The Client is safe for concurrent use; each Open returns an independent
// Reader.
type Client struct {
	config     *ClientConfig
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a chat client. A nil config uses DefaultConfig.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = "/chat"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.ConnectTimeout)
	}

	return &Client{
		config:     &cfg,
		endpoint:   joinURL(cfg.BaseURL, cfg.ChatPath),
		httpClient: httpClient,
	}
}

// newHTTPClient builds a client without an overall timeout; the body of a
// reply may legitimately take minutes, so only the connect phase is bounded.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = connectTimeout
	return &http.Client{Transport: transport}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Endpoint returns the full chat URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetConfig returns a copy of the client configuration.
func (c *Client) GetConfig() ClientConfig {
	return *c.config
}

// CloseIdleConnections releases pooled keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Open sends req and returns a Reader over the reply once response headers
// have arrived with a 2xx status. Any other status is an ErrTypeStatus
// error; the body of such a reply is discarded.
//
// Cancelling ctx aborts the request at any point, including mid-stream.
// The caller must Close the returned Reader.
func (c *Client) Open(ctx context.Context, req ChatRequest) (*Reader, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{
			Type:    ErrTypeUnknown,
			Message: "failed to encode request",
			Cause:   pkgerrors.Wrap(err, "marshal chat request"),
		}
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	started := time.Now()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel(nil)
		return nil, &ClientError{Type: ErrTypeTransport, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel(nil)
		return nil, classifyRequestError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		cancel(nil)
		return nil, statusError(resp.StatusCode, resp.Status)
	}

	return newReader(streamCtx, cancel, resp.Body, readerOptions{
		idleTimeout: c.config.IdleTimeout,
		strict:      c.config.StrictUTF8,
		started:     started,
	}), nil
}

// classifyRequestError maps an error from http.Client.Do onto the error
// taxonomy. parent is the caller's context, not the request context.
func classifyRequestError(parent context.Context, err error) *ClientError {
	if parent.Err() != nil {
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: context.Cause(parent)}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "timed out waiting for response headers", Cause: err}
	}

	return &ClientError{Type: ErrTypeTransport, Message: "chat server unreachable", Cause: err}
}

// drainAndClose discards a bounded amount of the body so the connection can
// be reused, then closes it.
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	r.Close()
}
