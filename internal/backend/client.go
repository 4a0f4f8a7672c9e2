// Package backend is a typed client for the café backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	PathButtonCalls       = "/button-calls"
	PathQueue             = PathButtonCalls + "/queue"
	PathCloseFromCustomer = PathButtonCalls + "/close-from-customer"
	PathCloseFromPanel    = PathButtonCalls + "/close-from-panel"
	PathFeedback          = "/tables/feedback"

	RequestIDHeader = "X-Request-ID"
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.With("component", "backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) CreateCall(ctx context.Context, in CallInput) (*ButtonCall, error) {
	var out ButtonCall
	if err := c.do(ctx, http.MethodPost, PathButtonCalls, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseFromCustomer closes a call on behalf of the patron at the table.
func (c *Client) CloseFromCustomer(ctx context.Context, in CloseCallInput) (*ButtonCall, error) {
	var out ButtonCall
	if err := c.do(ctx, http.MethodPost, PathCloseFromCustomer, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseFromPanel closes a call from the staff dashboard.
func (c *Client) CloseFromPanel(ctx context.Context, in CloseCallInput) (*ButtonCall, error) {
	var out ButtonCall
	if err := c.do(ctx, http.MethodPost, PathCloseFromPanel, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetQueue(ctx context.Context, location int, tableName string) (QueueResponse, error) {
	q := url.Values{}
	q.Set("location", strconv.Itoa(location))
	q.Set("tableName", tableName)

	out := QueueResponse{}
	if err := c.do(ctx, http.MethodGet, PathQueue, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCalls(ctx context.Context, query ListCallsQuery) ([]ButtonCall, error) {
	q := url.Values{}
	q.Set("location", strconv.Itoa(query.Location))
	if query.Date != "" {
		q.Set("date", query.Date)
	}
	if query.Type != "" {
		q.Set("type", query.Type)
	}

	var out []ButtonCall
	if err := c.do(ctx, http.MethodGet, PathButtonCalls, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateFeedback(ctx context.Context, in FeedbackInput) (*Feedback, error) {
	var out Feedback
	if err := c.do(ctx, http.MethodPost, PathFeedback, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, path, err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} bodies, falling back to the raw text.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(b))
}
