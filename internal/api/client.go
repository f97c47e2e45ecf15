// Package api is the HTTP client for the catalog and execution backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
)

// DefaultBaseURL is where the backend listens when nothing is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend over its HTTP contract.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client. An empty BaseURL selects DefaultBaseURL.
func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{base: base, http: hc, timeout: timeout, logger: logger}, nil
}

// BaseURL returns the backend address the client targets.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Databases lists the databases known to the backend.
func (c *Client) Databases(ctx context.Context) ([]catalog.Database, error) {
	body, err := c.do(ctx, http.MethodGet, "databases", nil, "databases")
	if err != nil {
		return nil, err
	}
	return catalog.DecodeDatabases(body)
}

// Schemas lists the schemas of a database.
func (c *Client) Schemas(ctx context.Context, database string) ([]catalog.Schema, error) {
	body, err := c.do(ctx, http.MethodGet, "schemas", nil, database, "schemas")
	if err != nil {
		return nil, err
	}
	return catalog.DecodeSchemas(body)
}

// Tables lists the tables of a schema, with their columns and indexes.
func (c *Client) Tables(ctx context.Context, database, schema string) ([]catalog.Table, error) {
	body, err := c.do(ctx, http.MethodGet, "tables", nil, database, schema, "tables")
	if err != nil {
		return nil, err
	}
	return catalog.DecodeTables(body)
}

// ExecuteRequest is the body of POST /execute. Database and Schema are
// optional; backends that do not know them ignore them.
type ExecuteRequest struct {
	Query    string `json:"query"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
}

// Execute sends a query to the execution endpoint.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode execute request: %w", err)
	}

	id := uuid.NewString()
	ctx = withRequestID(ctx, id)

	body, err := c.do(ctx, http.MethodPost, "execute", payload, "execute")
	if err != nil {
		return nil, err
	}
	res, err := decodeResult(body)
	if err != nil {
		return nil, &catalog.DecodeError{Resource: "execute", Reason: "invalid result", Err: err}
	}
	res.RequestID = id
	return res, nil
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, op string, payload []byte, segments ...string) ([]byte, error) {
	target := c.endpoint(segments...)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	id := requestID(ctx)
	req.Header.Set(RequestIDHeader, id)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "url", target, "request_id", id, "error", err)
		return nil, &NetworkError{Op: op, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Op: op, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("request complete",
		"op", op,
		"url", target,
		"status", resp.StatusCode,
		"request_id", id,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: op, URL: target, StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}
	return data, nil
}

// errorDetail extracts {"error": "..."} or FastAPI's {"detail": "..."}.
func errorDetail(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	if s, ok := e.Detail.(string); ok {
		return s
	}
	return ""
}
