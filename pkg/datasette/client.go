package datasette

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultRequestTimeout bounds one upstream request when no per-call
	// override is given.
	defaultRequestTimeout = 30 * time.Second

	// maxResponseBytes caps how much of an upstream body is read.
	maxResponseBytes = 32 << 20
)

// Client issues read-only requests against configured Datasette instances.
// Every request resolves the instance, waits out the courtesy delay, and
// classifies the outcome into the error taxonomy. One attempt per call, no
// retries: operations are idempotent and recovery belongs to the caller.
type Client struct {
	registry   *Registry
	throttle   *Throttle
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client over the given registry.
func NewClient(registry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:   registry,
		throttle:   NewThrottle(),
		httpClient: &http.Client{},
		timeout:    defaultRequestTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the instance registry the client serves.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Fetch performs one GET against the instance and returns the raw JSON body.
// timeout overrides the client default when positive.
func (c *Client) Fetch(ctx context.Context, instanceID, path string, params url.Values, timeout time.Duration) ([]byte, error) {
	inst, err := c.registry.Resolve(instanceID)
	if err != nil {
		return nil, err
	}

	if err := c.throttle.Wait(ctx, inst); err != nil {
		return nil, wrapError(KindUpstreamUnavailable, err, "request to instance %q aborted while throttled", inst.ID)
	}

	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := inst.BaseURL + path
	if enc := params.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, wrapError(KindInvalidArgument, err, "building request for instance %q", inst.ID)
	}
	req.Header.Set("Accept", "application/json")
	if inst.HasAuth() {
		req.Header.Set("Authorization", "Bearer "+inst.AuthToken)
	}

	requestID := uuid.NewString()
	start := time.Now()
	c.logger.Debug("datasette request",
		"request_id", requestID,
		"instance", inst.ID,
		"path", path,
		"timeout", timeout,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("datasette request failed", "request_id", requestID, "error", err)
		return nil, wrapError(KindUpstreamUnavailable, err, "instance %q unreachable", inst.ID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, wrapError(KindUpstreamUnavailable, err, "reading response from instance %q", inst.ID)
	}

	c.logger.Debug("datasette response",
		"request_id", requestID,
		"instance", inst.ID,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(inst.ID, resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, newError(KindUpstreamUnavailable, "instance %q returned a non-JSON response", inst.ID)
	}
	return body, nil
}

// classifyStatus maps a non-2xx upstream response onto the error taxonomy,
// preserving the upstream message where one exists.
func classifyStatus(instanceID string, status int, body []byte) *Error {
	msg := upstreamMessage(body)
	switch {
	case status == http.StatusBadRequest:
		return newError(KindQuery, "datasette rejected the query (400): %s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindAuthentication,
			"instance %q denied access (%d): %s", instanceID, status, msg)
	case status == http.StatusNotFound:
		return newError(KindNotFound, "not found on instance %q: %s", instanceID, msg)
	default:
		return newError(KindUpstreamUnavailable,
			"instance %q returned HTTP %d: %s", instanceID, status, msg)
	}
}

// upstreamMessage extracts the error text from an upstream JSON error body,
// appending any extra fields the service included as context. Falls back to
// the raw body.
func upstreamMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncateForMessage(string(body))
	}

	var msg string
	if raw, ok := payload["error"]; ok {
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = string(raw)
		}
	}
	if msg == "" {
		return truncateForMessage(string(body))
	}

	delete(payload, "error")
	delete(payload, "ok")
	delete(payload, "status")
	if len(payload) > 0 {
		if details, err := json.Marshal(payload); err == nil {
			msg = fmt.Sprintf("%s (details: %s)", msg, details)
		}
	}
	return msg
}

// truncateForMessage keeps error messages readable when the upstream body is
// not a structured error.
func truncateForMessage(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
