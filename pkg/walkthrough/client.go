package walkthrough

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
)

// Client issues single, blocking requests against the service under test.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	runID     string
	logger    log.Interface
}

// request describes one call.
type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// json sets Content-Type even when there is no body.
	json          bool
	authorization string
}

// NewClient creates a client with a fixed per-call timeout.
func NewClient(baseURL string, timeout time.Duration, userAgent, runID string, logger log.Interface) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		runID:     runID,
		logger:    logger,
	}
}

// do sends req and reads the whole response body. Transport failures that
// happen before a connection exists come back as *ConnectivityError.
func (c *Client) do(ctx context.Context, req request) (*StepResult, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s body: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil || req.json {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.authorization != "" {
		httpReq.Header.Set("Authorization", req.authorization)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.runID != "" {
		httpReq.Header.Set("X-Request-ID", c.runID)
	}

	entry := c.logger.WithFields(log.Fields{
		"method": req.method,
		"path":   req.path,
		"run_id": c.runID,
	})

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		entry.WithError(err).Debug("request failed")
		if dialFailed(err) {
			return nil, &ConnectivityError{BaseURL: c.baseURL, Err: err}
		}
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", req.method, req.path, err)
	}

	result := &StepResult{
		StatusCode: resp.StatusCode,
		Body:       data,
		Elapsed:    time.Since(start),
	}

	entry.WithFields(log.Fields{
		"status":     result.StatusCode,
		"bytes":      len(data),
		"elapsed_ms": result.Elapsed.Milliseconds(),
	}).Debug("request completed")

	return result, nil
}
