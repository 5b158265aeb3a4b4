package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/course"
	"courseforge/internal/run"
	"courseforge/internal/store"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	longPoll   *http.Client
}

// NewClient constructs a client for the daemon at bind (host:port or URL).
func NewClient(bind string) *Client {
	base := strings.TrimSpace(bind)
	if base == "" {
		base = "127.0.0.1:7519"
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		longPoll:   &http.Client{},
	}
}

// Generate submits a URL and returns the accepted run.
func (c *Client) Generate(ctx context.Context, videoURL string) (*run.Run, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", GenerateRequest{URL: videoURL}, &resp); err != nil {
		return nil, err
	}
	if resp.Run != nil {
		return resp.Run, nil
	}
	return &run.Run{ID: resp.RunID}, nil
}

// Run fetches one run by id.
func (c *Client) Run(ctx context.Context, id string) (*run.Run, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Run, nil
}

// Runs lists active and recently finished runs.
func (c *Client) Runs(ctx context.Context) ([]*run.Run, error) {
	var resp RunListResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// History lists persisted run summaries.
func (c *Client) History(ctx context.Context, limit int) ([]store.RunSummary, error) {
	var resp RunHistoryResponse
	path := "/api/runs/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Cancel aborts a running pipeline.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(id), nil, nil)
}

// Logs fetches run log events after the since cursor. With follow, the
// daemon long-polls until an event arrives or the request context ends.
func (c *Client) Logs(ctx context.Context, id string, since uint64, limit int, follow bool) (LogStreamResponse, error) {
	var resp LogStreamResponse
	query := url.Values{}
	if since > 0 {
		query.Set("since", strconv.FormatUint(since, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if follow {
		query.Set("follow", "1")
	}
	path := "/api/runs/" + url.PathEscape(id) + "/logs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	client := c.httpClient
	if follow {
		// Follow requests block server-side until an event arrives, so the
		// fixed client timeout does not apply.
		client = c.longPoll
	}
	err := c.doWith(ctx, client, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Course fetches one stored artifact.
func (c *Client) Course(ctx context.Context, id int64) (*course.Course, error) {
	var resp CourseResponse
	if err := c.do(ctx, http.MethodGet, "/api/courses/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Course, nil
}

// Courses lists stored artifacts.
func (c *Client) Courses(ctx context.Context, limit int) ([]*course.Course, error) {
	var resp CourseListResponse
	path := "/api/courses"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

// Status fetches daemon health.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWith(ctx, c.httpClient, method, path, body, out)
}

func (c *Client) doWith(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
