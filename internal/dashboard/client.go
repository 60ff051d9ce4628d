// Package dashboard is a client for the capture dashboard REST API: device
// and scheduler status, captured signals, predicted passes and manual
// captures.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

var (
	// ErrCaptureBusy is returned when another capture is already in progress
	ErrCaptureBusy = errors.New("another capture is already in progress")

	// ErrNotFound is returned when the requested signal does not exist
	ErrNotFound = errors.New("not found")
)

// APIError is a non-success response from the dashboard. Message holds the
// server's error text when the body carried one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dashboard: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("dashboard: %s (status %d)", e.Message, e.StatusCode)
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) func(*Client) {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) func(*Client) {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// Client talks to the dashboard REST API. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the dashboard at baseURL.
func NewClient(baseURL string, options ...func(*Client)) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported dashboard URL scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("dashboard URL must include a host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path += path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("dashboard request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeError(resp)
	}

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(b, &body) == nil {
		apiErr.Message = body.Error
	}

	return apiErr
}

// Status fetches the device and scheduler status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if _, err := c.do(ctx, http.MethodGet, "/api/status", nil, &s); err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	return &s, nil
}

// Signals fetches the most recent captures, newest first.
func (c *Client) Signals(ctx context.Context) ([]Signal, error) {
	var s []Signal
	if _, err := c.do(ctx, http.MethodGet, "/api/signals", nil, &s); err != nil {
		return nil, fmt.Errorf("fetching signals: %w", err)
	}
	return s, nil
}

// Signal fetches a single capture. It returns ErrNotFound when the capture
// does not exist.
func (c *Client) Signal(ctx context.Context, id int64) (*Signal, error) {
	var s Signal
	status, err := c.do(ctx, http.MethodGet, "/api/signal/info/"+strconv.FormatInt(id, 10), nil, &s)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("signal %d: %w", id, errors.Join(ErrNotFound, err))
	}
	if err != nil {
		return nil, fmt.Errorf("fetching signal %d: %w", id, err)
	}
	return &s, nil
}

// Passes fetches the predicted passes ordered by start time.
func (c *Client) Passes(ctx context.Context) ([]Pass, error) {
	var p []Pass
	if _, err := c.do(ctx, http.MethodGet, "/api/passes", nil, &p); err != nil {
		return nil, fmt.Errorf("fetching passes: %w", err)
	}
	return p, nil
}

// DeleteSignal removes a capture and its files.
func (c *Client) DeleteSignal(ctx context.Context, id int64) error {
	status, err := c.do(ctx, http.MethodDelete, "/api/signal/delete/"+strconv.FormatInt(id, 10), nil, nil)
	if status == http.StatusNotFound {
		return fmt.Errorf("signal %d: %w", id, errors.Join(ErrNotFound, err))
	}
	if err != nil {
		return fmt.Errorf("deleting signal %d: %w", id, err)
	}
	return nil
}

// StartManualCapture asks the dashboard to start a capture. The capture runs
// asynchronously; ErrCaptureBusy is returned if one is already running.
func (c *Client) StartManualCapture(ctx context.Context, req ManualCapture) error {
	status, err := c.do(ctx, http.MethodPost, "/api/capture/manual", req, nil)
	if status == http.StatusConflict {
		return errors.Join(ErrCaptureBusy, err)
	}
	if err != nil {
		return fmt.Errorf("starting manual capture: %w", err)
	}
	return nil
}

// ToggleScanner pauses or resumes the satellite scanner and returns the new
// scanner state.
func (c *Client) ToggleScanner(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/scanner/toggle", nil, &resp); err != nil {
		return "", fmt.Errorf("toggling scanner: %w", err)
	}
	return resp.Status, nil
}
