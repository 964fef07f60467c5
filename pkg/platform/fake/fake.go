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

// Package fake implements an in-memory platform.Client, exercised by
// end-to-end tests and by the CLI's default (--platform-url unset) mode
// instead of a real Taskcluster deployment.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskcluster/taskgraph/pkg/optimize"
)

// Client is a concurrency-safe, in-memory platform.Client.
type Client struct {
	mu sync.Mutex

	indexed   map[string]string
	statuses  map[string]optimize.TaskStatus
	artifacts map[string]map[string][]byte
	created   map[string]map[string]any
}

// New returns an empty Client ready for Index/SetTaskStatus/SetArtifact
// setup calls.
func New() *Client {
	return &Client{
		indexed:   map[string]string{},
		statuses:  map[string]optimize.TaskStatus{},
		artifacts: map[string]map[string][]byte{},
		created:   map[string]map[string]any{},
	}
}

// Index registers indexPath as resolving to taskID, for FindTaskByIndex.
func (c *Client) Index(indexPath, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexed[indexPath] = taskID
}

// SetTaskStatus registers taskID's status, for GetTaskStatuses.
func (c *Client) SetTaskStatus(taskID string, status optimize.TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[taskID] = status
}

// SetArtifact registers a byte blob as taskID's named artifact, for
// GetArtifact.
func (c *Client) SetArtifact(taskID, name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifacts[taskID] == nil {
		c.artifacts[taskID] = map[string][]byte{}
	}
	c.artifacts[taskID][name] = data
}

// Created returns the task-id -> definition map of every task recorded by
// CreateTasks calls so far, for assertions.
func (c *Client) Created() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

func (c *Client) FindTaskByIndex(ctx context.Context, indexPath string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.indexed[indexPath]
	return id, ok, nil
}

func (c *Client) GetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]optimize.TaskStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]optimize.TaskStatus, len(taskIDs))
	for _, id := range taskIDs {
		if s, ok := c.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (c *Client) GetArtifact(ctx context.Context, taskID, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byName, ok := c.artifacts[taskID]
	if !ok {
		return nil, fmt.Errorf("no artifacts for task %q", taskID)
	}
	data, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("task %q has no artifact %q", taskID, name)
	}
	return data, nil
}

// CreateTasks records defs as created, atomically: a nil/empty defs is a
// no-op, and there is no partial-failure mode to simulate since nothing
// here can fail once called with a non-nil map.
func (c *Client) CreateTasks(ctx context.Context, defs map[string]map[string]any, rootTaskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	created := make(map[string]map[string]any, len(c.created)+len(defs))
	for id, def := range c.created {
		created[id] = def
	}
	for id, def := range defs {
		created[id] = def
	}
	c.created = created
	return nil
}
