// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the VibeStack API.
//
// VibeStack is a tmux-backed session orchestrator. This client library
// provides typed access to the REST API: sessions, one-off jobs and
// templates.
//
// Create a client pointing to your VibeStack server:
//
//	c := client.New("http://localhost:8080")
//
// The client provides access to resources through sub-clients:
//
//	// List all sessions
//	sessions, err := c.Sessions.List(ctx, "")
//
//	// Create a session from a template
//	record, err := c.Sessions.Create(ctx, client.CreateSessionRequest{
//	    Name:     "dev",
//	    Template: "bash",
//	})
//
//	// Queue a one-off command
//	record, err := c.Jobs.EnqueueOneOff(ctx, client.OneOffRequest{
//	    Name:    "build",
//	    Command: "make all",
//	})
//
// All API methods accept a context.Context for cancellation and timeouts.
// API errors are returned as *APIError values carrying the HTTP status and
// the server's detail message.
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
)

// Client is a VibeStack API client. It is safe for concurrent use by
// multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Sessions provides access to session lifecycle operations.
	Sessions *SessionClient

	// Jobs provides access to the one-off job ledger.
	Jobs *JobClient

	// Templates provides access to template CRUD.
	Templates *TemplateClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a new VibeStack API client with the given base URL and
// options. Any trailing slash on baseURL is removed. The default HTTP
// timeout is 30 seconds.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Sessions = &SessionClient{c: c}
	c.Jobs = &JobClient{c: c}
	c.Templates = &TemplateClient{c: c}

	return c
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the VibeStack API.
type APIError struct {
	// StatusCode is the HTTP status of the failed request.
	StatusCode int

	// Detail is the server's human-readable error message.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// errorBody is the error payload shape returned by the server.
type errorBody struct {
	Detail string `json:"detail"`
}

// do performs a request and decodes errors from the standard error body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Detail != "" {
			apiErr.Detail = eb.Detail
		}
		return nil, apiErr
	}

	return data, nil
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// decode unmarshals raw response data into out, tolerating empty bodies.
func decode(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
