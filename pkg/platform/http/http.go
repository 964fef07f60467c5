// Copyright 2025 The Taskcluster Taskgraph Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http is a minimal real platform.Client, proving the interface
// has a non-fake implementation without reimplementing a full Taskcluster
// client. It speaks a small JSON-over-HTTP protocol against BaseURL:
// GET /task/<index-path>/index,
// GET /task/<id>/status (batched as POST /tasks/status with a body of
// ids), GET /task/<id>/artifacts/<name>, and POST /tasks for creation.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/taskcluster/taskgraph/pkg/optimize"
	"github.com/taskcluster/taskgraph/pkg/platform/batch"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
)

// Client is a minimal real platform.Client backed by net/http (see
// DESIGN.md for why this stays on net/http directly rather than adopting
// an HTTP client library).
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	StatusPageSize int
	MaxConcurrent  int
	MaxRetries     int
}

// New returns a Client with the documented defaults: a page size of 100
// task-ids per status batch, at most 4 pages in flight, and 3 attempts per
// request before giving up.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:        baseURL,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		StatusPageSize: 100,
		MaxConcurrent:  4,
		MaxRetries:     3,
	}
}

// request issues method/path with retries on network errors and 5xx
// responses, returning the raw response body. A 4xx response is treated as
// non-retryable and returned immediately as a *taskerrors.PlatformError.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &taskerrors.PlatformError{Operation: method + " " + path, Err: err}
		}
		payload = b
	}

	var lastErr error
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return nil, &taskerrors.PlatformError{Operation: method + " " + path, Err: ctx.Err()}
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
		if err != nil {
			return nil, &taskerrors.PlatformError{Operation: method + " " + path, Err: err}
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, &taskerrors.PlatformError{Operation: method + " " + path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
		}
		return respBody, nil
	}
	return nil, &taskerrors.PlatformError{Operation: method + " " + path, Err: lastErr}
}

// do is request plus JSON-decoding the response into out, for every
// endpoint except GetArtifact, whose payload is opaque bytes rather than a
// JSON document.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	respBody, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &taskerrors.PlatformError{Operation: method + " " + path, Err: err}
		}
	}
	return nil
}

func (c *Client) FindTaskByIndex(ctx context.Context, indexPath string) (string, bool, error) {
	var out struct {
		TaskID string `json:"taskId"`
		Found  bool   `json:"found"`
	}
	if err := c.do(ctx, http.MethodGet, "/task/"+url.PathEscape(indexPath)+"/index", nil, &out); err != nil {
		return "", false, err
	}
	return out.TaskID, out.Found, nil
}

type statusEntry struct {
	State   string    `json:"state"`
	Expires time.Time `json:"expires"`
}

func (c *Client) GetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]optimize.TaskStatus, error) {
	statuses, err := batch.Dispatch(ctx, taskIDs, c.StatusPageSize, c.MaxConcurrent, func(ctx context.Context, page batch.Page[string]) ([]optimize.TaskStatus, error) {
		var byID map[string]statusEntry
		if err := c.do(ctx, http.MethodPost, "/tasks/status", map[string]any{"taskIds": page.Items}, &byID); err != nil {
			return nil, err
		}
		out := make([]optimize.TaskStatus, len(page.Items))
		for i, id := range page.Items {
			if entry, ok := byID[id]; ok {
				out[i] = optimize.TaskStatus{State: entry.State, Expires: entry.Expires}
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	result := make(map[string]optimize.TaskStatus, len(taskIDs))
	for i, id := range taskIDs {
		if statuses[i].State != "" {
			result[id] = statuses[i]
		}
	}
	return result, nil
}

func (c *Client) GetArtifact(ctx context.Context, taskID, name string) ([]byte, error) {
	path := "/task/" + url.PathEscape(taskID) + "/artifacts/" + url.PathEscape(name)
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) CreateTasks(ctx context.Context, defs map[string]map[string]any, rootTaskID string) error {
	body := map[string]any{
		"tasks":      defs,
		"rootTaskId": rootTaskID,
	}
	return c.do(ctx, http.MethodPost, "/tasks", body, nil)
}
