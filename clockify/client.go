// Package clockify is a thin client for the Clockify v1 REST API, scoped to
// a single workspace. Listing endpoints authenticate with the workspace API
// key; time entry mutations authenticate with the per-user key passed by the
// caller.
package clockify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"log/slog"

	"clockbot/core/logger"
)

const (
	apiKeyHeader   = "X-Api-Key"
	defaultTimeout = 30 * time.Second
)

// Config carries the workspace-level settings for the client.
type Config struct {
	BaseURL     string
	APIKey      string
	WorkspaceID string
	// Timeout bounds a single API call; zero selects the default.
	Timeout time.Duration
}

// Client wraps the Clockify workspace API.
type Client struct {
	http        *resty.Client
	workspaceID string
}

// New constructs a Client for the configured workspace.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New().
		SetBaseURL(fmt.Sprintf("%s/workspaces/%s", cfg.BaseURL, cfg.WorkspaceID)).
		SetHeader("Content-Type", "application/json").
		SetHeader(apiKeyHeader, cfg.APIKey).
		SetTimeout(timeout)

	return &Client{http: c, workspaceID: cfg.WorkspaceID}
}

// ListWorkspaceUsers returns all members of the workspace.
func (c *Client) ListWorkspaceUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListProjects returns all projects of the workspace with their memberships.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateTimeEntry records a finished entry for the given user. The start and
// end strings are sent to the API verbatim.
func (c *Client) CreateTimeEntry(ctx context.Context, userKey, userID, start, end, projectID, description string) (*TimeEntry, error) {
	body := createEntryRequest{
		Description: description,
		Start:       start,
		End:         end,
		ProjectID:   projectID,
	}
	return c.postEntry(ctx, userKey, userID, body)
}

// StartTimeEntry opens a running entry for the given user.
func (c *Client) StartTimeEntry(ctx context.Context, userKey, userID, start, projectID, description string) (*TimeEntry, error) {
	body := createEntryRequest{
		Description: description,
		Start:       start,
		ProjectID:   projectID,
		Billable:    true,
	}
	return c.postEntry(ctx, userKey, userID, body)
}

// EndTimeEntry stops the user's currently running entry. Clockify decides
// which entry is current; a 404 means there is none.
func (c *Client) EndTimeEntry(ctx context.Context, userKey, userID, end string) (*TimeEntry, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, userKey).
		SetBody(endEntryRequest{End: end}).
		Patch(fmt.Sprintf("/user/%s/time-entries", userID))
	if err != nil {
		return nil, fmt.Errorf("clockify request: %w", err)
	}
	return c.decodeEntry(ctx, "entry.end", resp, start)
}

func (c *Client) postEntry(ctx context.Context, userKey, userID string, body createEntryRequest) (*TimeEntry, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, userKey).
		SetBody(&body).
		Post(fmt.Sprintf("/user/%s/time-entries", userID))
	if err != nil {
		return nil, fmt.Errorf("clockify request: %w", err)
	}
	return c.decodeEntry(ctx, "entry.create", resp, start)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("clockify request: %w", err)
	}
	if resp.IsError() {
		c.logCall(ctx, "list", path, resp.StatusCode(), start)
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	c.logCall(ctx, "list", path, resp.StatusCode(), start)
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("clockify decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) decodeEntry(ctx context.Context, event string, resp *resty.Response, start time.Time) (*TimeEntry, error) {
	c.logCall(ctx, event, resp.Request.URL, resp.StatusCode(), start)
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if len(resp.Body()) == 0 {
		return &TimeEntry{}, nil
	}
	var entry TimeEntry
	if err := json.Unmarshal(resp.Body(), &entry); err != nil {
		return nil, fmt.Errorf("clockify decode entry: %w", err)
	}
	return &entry, nil
}

func (c *Client) logCall(ctx context.Context, event, path string, status int, start time.Time) {
	if logger.CLK == nil {
		return
	}
	logger.CLK.LogAttrs(ctx, slog.LevelDebug, "",
		slog.String("event", event),
		slog.String("status", logger.Status(statusErr(status))),
		slog.String("path", path),
		slog.Int("http_code", status),
		slog.Duration("duration", logger.Took(start)),
	)
}

func statusErr(code int) error {
	if code >= 400 {
		return &APIError{StatusCode: code}
	}
	return nil
}
