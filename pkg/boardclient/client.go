// Package boardclient is a worker board that talks to a workboard server
// over HTTP.
package boardclient

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

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
	"github.com/colonyops/workboard/pkg/iojson"
)

// Client implements worker.Board against the HTTP API. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ worker.Board = (*Client)(nil)

// New returns a client for baseURL, e.g. "http://127.0.0.1:7420". A nil
// httpClient uses one with a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIError is a non-2xx response. It unwraps to the matching sentinel so
// callers can use errors.Is the same way they would against a local board.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   iojson.Error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Body.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Body.Reason() {
	case iojson.ReasonAlreadyClaimed:
		return worker.ErrAlreadyClaimed
	case iojson.ReasonNotFound:
		return backlog.ErrNotFound
	case iojson.ReasonStalePatch:
		return workdir.ErrStalePatch
	case iojson.ReasonExists:
		return workdir.ErrExists
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bits, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(bits)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: iojson.ReadError(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Work(ctx context.Context, name, role string) (worker.Work, error) {
	q := url.Values{"worker": {name}}
	if role != "" {
		q.Set("role", role)
	}
	var work worker.Work
	err := c.do(ctx, http.MethodGet, "/api/assignments?"+q.Encode(), nil, &work)
	return work, err
}

func (c *Client) Report(ctx context.Context, r worker.Report) error {
	return c.do(ctx, http.MethodPost, "/api/workers/report", r, nil)
}

func (c *Client) SetTaskStatus(ctx context.Context, source string, status backlog.TaskStatus) error {
	body := map[string]any{"source": source, "status": string(status)}
	return c.do(ctx, http.MethodPatch, "/api/tasks/status", body, nil)
}

func (c *Client) ReadFile(ctx context.Context, source string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	err := c.do(ctx, http.MethodGet, "/api/files?"+url.Values{"source": {source}}.Encode(), nil, &out)
	return out.Content, err
}

// Assign pushes an assignment to a worker.
func (c *Client) Assign(ctx context.Context, a worker.Assignment) error {
	return c.do(ctx, http.MethodPost, "/api/assignments", a, nil)
}

// Backlog fetches the current backlog snapshot.
func (c *Client) Backlog(ctx context.Context) (backlog.Backlog, error) {
	var b backlog.Backlog
	err := c.do(ctx, http.MethodGet, "/api/backlog", nil, &b)
	return b, err
}

// Workers lists known workers.
func (c *Client) Workers(ctx context.Context) ([]worker.State, error) {
	var out struct {
		Workers []worker.State `json:"workers"`
	}
	err := c.do(ctx, http.MethodGet, "/api/workers", nil, &out)
	return out.Workers, err
}
