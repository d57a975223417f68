// Package client is the CLI's HTTP client for the sync API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/sync"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one locforge server.
type Client struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// New creates a client for the given base URL. An empty timeout falls
// back to 30 seconds.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithActor sets the actor name reported with writes.
func (c *Client) WithActor(actor string) *Client {
	c.actor = actor
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Locforge-Actor", c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Push sends a change-set and returns the per-entry outcome.
func (c *Client) Push(ctx context.Context, cs *sync.ChangeSet) (*sync.PushOutcome, error) {
	var out sync.PushOutcome
	err := c.do(ctx, http.MethodPost, "/api/projects/"+cs.ProjectID+"/push", cs, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Entries returns the project's current cloud entries (the pull
// payload).
func (c *Client) Entries(ctx context.Context, projectID string) ([]sync.RemoteEntry, error) {
	var out []sync.RemoteEntry
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/entries", nil, &out)
	return out, err
}

// Conflicts returns the project's pending GitHub conflicts.
func (c *Client) Conflicts(ctx context.Context, projectID string) ([]store.PendingConflict, error) {
	var out []store.PendingConflict
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/conflicts", nil, &out)
	return out, err
}

// Resolve applies a resolution choice to a pending conflict.
func (c *Client) Resolve(ctx context.Context, projectID string, conflictID int64, choice sync.ResolutionChoice, manualValue string) (*store.HistoryEntry, error) {
	in := map[string]interface{}{"resolution": choice}
	if manualValue != "" {
		in["manual_value"] = manualValue
	}
	var out store.HistoryEntry
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/projects/%s/conflicts/%d/resolve", projectID, conflictID), in, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists the project's sync history, newest first.
func (c *Client) History(ctx context.Context, projectID string, limit int) ([]store.HistoryEntry, error) {
	path := "/api/projects/" + projectID + "/history"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out []store.HistoryEntry
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// HistoryEntry returns one ledger entry with its change list.
func (c *Client) HistoryEntry(ctx context.Context, projectID, historyID string) (*store.HistoryEntry, error) {
	var out store.HistoryEntry
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/history/"+historyID, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Revert undoes a history entry on the server.
func (c *Client) Revert(ctx context.Context, projectID, historyID string) (*store.HistoryEntry, error) {
	var out store.HistoryEntry
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/history/"+historyID+"/revert", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Snapshots lists the project's snapshots.
func (c *Client) Snapshots(ctx context.Context, projectID string) ([]store.Snapshot, error) {
	var out []store.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/snapshots", nil, &out)
	return out, err
}

// CreateSnapshot takes a snapshot of the project's cloud state.
func (c *Client) CreateSnapshot(ctx context.Context, projectID string, typ store.SnapshotType, description string) (*store.Snapshot, error) {
	in := map[string]interface{}{"type": typ}
	if description != "" {
		in["description"] = description
	}
	var out store.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/snapshots", in, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RestoreSnapshot rewrites the cloud state to a snapshot's contents.
func (c *Client) RestoreSnapshot(ctx context.Context, projectID, snapshotID string) (*store.HistoryEntry, error) {
	var out store.HistoryEntry
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/snapshots/"+snapshotID+"/restore", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSnapshot removes a snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, projectID, snapshotID string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+projectID+"/snapshots/"+snapshotID, nil, nil)
}
