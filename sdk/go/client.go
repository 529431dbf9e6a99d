package taskgensdk

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
)

// Client is a minimal taskgen HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. Generation of large datasets can take a while,
// so the default timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  5 * time.Minute,
	}
}

// Params are the generation parameters recorded with a run.
type Params struct {
	Seed               int64   `json:"seed"`
	NumSamples         int     `json:"num_samples"`
	DistanceConstraint float64 `json:"distance_constraint"`
	PlacementRetries   int     `json:"placement_retries"`
	ClusterAttempts    int     `json:"cluster_attempts"`
	QuotaAttempts      int     `json:"quota_attempts"`
}

// Run represents the API run model.
type Run struct {
	ID          string  `json:"id"`
	TaskID      string  `json:"task_id"`
	Seed        int64   `json:"seed"`
	Params      Params  `json:"parameters"`
	Status      string  `json:"status"`
	ArchivePath string  `json:"archive_path,omitempty"`
	Digest      string  `json:"digest,omitempty"`
	Target      string  `json:"target,omitempty"`
	Rows        int     `json:"rows"`
	Shortfall   int     `json:"shortfall"`
	Error       string  `json:"error,omitempty"`
	ActorID     string  `json:"actor_id"`
	ReplayOf    *string `json:"replay_of,omitempty"`
	CreatedAt   string  `json:"created_at"`
	FinishedAt  *string `json:"finished_at,omitempty"`
}

// Task describes a task recipe.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Synthetic   bool   `json:"synthetic"`
}

// Replay is the outcome of regenerating a run.
type Replay struct {
	RunID    string `json:"run_id"`
	ReplayOf string `json:"replay_of"`
	Digest   string `json:"digest"`
	Expected string `json:"expected_digest"`
	Matches  bool   `json:"matches"`
}

// GenerateRequest overrides the server defaults; nil fields keep them.
type GenerateRequest struct {
	Seed               *int64   `json:"seed,omitempty"`
	NumSamples         *int     `json:"num_samples,omitempty"`
	DistanceConstraint *float64 `json:"distance_constraint,omitempty"`
}

// RunFilters narrow ListRuns.
type RunFilters struct {
	TaskID string
	Status string
	Limit  int
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Tasks lists the task recipes.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

// Generate runs the recipe for taskID and returns the recorded run.
func (c *Client) Generate(ctx context.Context, taskID string, req GenerateRequest) (Run, error) {
	var resp Run
	endpoint := fmt.Sprintf("tasks/%s/runs", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, req, &resp)
	return resp, err
}

// GetRun fetches a run by id.
func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var resp Run
	err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListRuns returns runs newest first.
func (c *Client) ListRuns(ctx context.Context, f RunFilters) ([]Run, error) {
	q := url.Values{}
	if f.TaskID != "" {
		q.Set("task_id", f.TaskID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	endpoint := "runs"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Run `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Replay regenerates a run server-side and reports whether the digest matched.
func (c *Client) Replay(ctx context.Context, id string) (Replay, error) {
	var resp Replay
	err := c.do(ctx, http.MethodPost, "runs/"+url.PathEscape(id)+"/replay", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	} else if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	if basePath == "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + basePath
}
