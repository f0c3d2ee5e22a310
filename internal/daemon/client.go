package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/progress"
	"lexisub/internal/services"
)

// ErrDaemonUnavailable reports that nothing answered on the API address.
var ErrDaemonUnavailable = errors.New("lexisub daemon not reachable")

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Category   services.Category
}

func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("daemon api: http %d (%s): %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("daemon api: http %d: %s", e.StatusCode, e.Message)
}

// Client talks to the control API.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// NewClient returns a client for the daemon bound at addr ("host:port" or a
// full URL).
func NewClient(addr, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, token: strings.TrimSpace(token), client: &http.Client{Timeout: 30 * time.Second}}
}

// Submit enqueues a chunk request. A duplicate in-flight task returns the
// existing record with an *APIError carrying 409.
func (c *Client) Submit(ctx context.Context, req chunk.Request) (progress.Record, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodPost, "/api/chunks", req, &resp)
	return resp.Task, err
}

// Get fetches the progress record of a task.
func (c *Client) Get(ctx context.Context, taskID string) (progress.Record, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodGet, "/api/chunks/"+url.PathEscape(taskID), nil, &resp)
	return resp.Task, err
}

// Cancel requests cancellation of a task.
func (c *Client) Cancel(ctx context.Context, taskID string) (progress.Record, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodDelete, "/api/chunks/"+url.PathEscape(taskID), nil, &resp)
	return resp.Task, err
}

// Result takes the final record of a finished task. The raw JSON of the
// result is decoded into out when out is non-nil.
func (c *Client) Result(ctx context.Context, taskID string, out any) (progress.Record, error) {
	var raw struct {
		Task struct {
			progress.Record
			Result json.RawMessage `json:"result,omitempty"`
		} `json:"task"`
	}
	err := c.do(ctx, http.MethodGet, "/api/chunks/"+url.PathEscape(taskID)+"/result", nil, &raw)
	rec := raw.Task.Record
	if err != nil {
		return rec, err
	}
	if out != nil && len(raw.Task.Result) > 0 {
		if err := json.Unmarshal(raw.Task.Result, out); err != nil {
			return rec, fmt.Errorf("decode result: %w", err)
		}
	}
	return rec, nil
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.base, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusConflict && out != nil {
		_ = json.Unmarshal(data, out)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr ErrorResponse
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, Category: apiErr.Category}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
