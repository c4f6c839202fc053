// Package client provides a client for the workflow HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexcabrera/kybflow/internal/exchange"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/retry"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

const (
	// DefaultHost is the default API host.
	DefaultHost = "http://localhost:3001"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is how many times a conflicting update is retried.
	DefaultRetries = 2

	// DefaultRetryDelay is the pause between conflicting update attempts.
	DefaultRetryDelay = 200 * time.Millisecond
)

// Client is an HTTP client for the workflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithHost sets the API host.
func WithHost(host string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(host, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the conflict retry budget used by UpdateWithRetry.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// NewClient creates a new client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultHost,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health reports the server timestamp when the API is up.
func (c *Client) Health(ctx context.Context) (time.Time, error) {
	var out struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return time.Time{}, fmt.Errorf("health: %w", err)
	}
	return out.Timestamp, nil
}

// List returns one page of workflow summaries.
func (c *Client) List(ctx context.Context, p workflow.ListParams) (workflow.ListResult, error) {
	q := url.Values{}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if len(p.Tags) > 0 {
		q.Set("tags", strings.Join(p.Tags, ","))
	}
	if p.Archived {
		q.Set("archived", "true")
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	path := "/api/workflows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res workflow.ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return workflow.ListResult{}, fmt.Errorf("list workflows: %w", err)
	}
	return res, nil
}

type createRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Canvas      *graph.Canvas `json:"canvas"`
}

// Create stores a new workflow.
func (c *Client) Create(ctx context.Context, p workflow.CreateParams) (workflow.Workflow, error) {
	req := createRequest{Name: p.Name, Description: p.Description, Tags: p.Tags, Canvas: p.Canvas}
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPost, "/api/workflows", req, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("create workflow: %w", err)
	}
	return wf, nil
}

// Get fetches an active workflow.
func (c *Client) Get(ctx context.Context, id string) (workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodGet, workflowPath(id), nil, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return wf, nil
}

// Update applies p. A set p.Version makes the write conditional on the
// stored version.
func (c *Client) Update(ctx context.Context, id string, p workflow.UpdateParams) (workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPut, workflowPath(id), p, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("update workflow %s: %w", id, err)
	}
	return wf, nil
}

// UpdateWithRetry applies p and, on a version conflict, fetches the latest
// workflow, recomputes the update with refresh, and tries again with the
// latest version. A nil refresh resends p unchanged against the new version.
// When the retries run out the conflict is returned.
func (c *Client) UpdateWithRetry(ctx context.Context, id string, p workflow.UpdateParams, refresh func(latest workflow.Workflow) workflow.UpdateParams) (workflow.Workflow, error) {
	var wf workflow.Workflow
	attempt := 0
	policy := retry.Policy{
		Retries:   c.retries,
		Delay:     c.retryDelay,
		Retryable: IsConflict,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if attempt > 0 {
			latest, err := c.Get(ctx, id)
			if err != nil {
				return err
			}
			if refresh != nil {
				p = refresh(latest)
			}
			v := latest.Version
			p.Version = &v
		}
		attempt++

		var err error
		wf, err = c.Update(ctx, id, p)
		return err
	})
	if err != nil {
		return workflow.Workflow{}, err
	}
	return wf, nil
}

// Delete archives a workflow.
func (c *Client) Delete(ctx context.Context, id string) (workflow.Archived, error) {
	var out struct {
		Message  string            `json:"message"`
		Workflow workflow.Archived `json:"workflow"`
	}
	if err := c.do(ctx, http.MethodDelete, workflowPath(id), nil, &out); err != nil {
		return workflow.Archived{}, fmt.Errorf("delete workflow %s: %w", id, err)
	}
	return out.Workflow, nil
}

// Duplicate copies a workflow under a new name and slug.
func (c *Client) Duplicate(ctx context.Context, id string) (workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPost, workflowPath(id)+"/duplicate", nil, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("duplicate workflow %s: %w", id, err)
	}
	return wf, nil
}

type importRequest struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	ExportData  json.RawMessage `json:"exportData"`
}

// Import creates a workflow from an export document.
func (c *Client) Import(ctx context.Context, p workflow.ImportParams) (workflow.Workflow, error) {
	req := importRequest{Name: p.Name, Description: p.Description, Tags: p.Tags, ExportData: p.Document}
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPost, "/api/workflows/import", req, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("import workflow: %w", err)
	}
	return wf, nil
}

// Export fetches a workflow as an export document.
func (c *Client) Export(ctx context.Context, id string) (exchange.Document, error) {
	var doc exchange.Document
	if err := c.do(ctx, http.MethodGet, workflowPath(id)+"/export", nil, &doc); err != nil {
		return exchange.Document{}, fmt.Errorf("export workflow %s: %w", id, err)
	}
	return doc, nil
}

// History lists the stored snapshots of a workflow, newest first.
func (c *Client) History(ctx context.Context, id string) ([]workflow.Version, error) {
	var out struct {
		Versions []workflow.Version `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, workflowPath(id)+"/versions", nil, &out); err != nil {
		return nil, fmt.Errorf("workflow %s history: %w", id, err)
	}
	return out.Versions, nil
}

// Version fetches one snapshot.
func (c *Client) Version(ctx context.Context, id string, n int) (workflow.Version, error) {
	var v workflow.Version
	path := workflowPath(id) + "/versions/" + strconv.Itoa(n)
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return workflow.Version{}, fmt.Errorf("workflow %s version %d: %w", id, n, err)
	}
	return v, nil
}

func workflowPath(id string) string {
	return "/api/workflows/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error          string `json:"error"`
		CurrentVersion int    `json:"currentVersion"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	case http.StatusConflict:
		return &VersionConflictError{Current: body.CurrentVersion}
	default:
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	var conflict *VersionConflictError
	return errors.As(err, &conflict)
}
