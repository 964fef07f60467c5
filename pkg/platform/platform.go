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

// Package platform defines the full external task-execution platform
// interface, extending pkg/optimize.PlatformClient (the subset the
// optimizer needs) with the two operations only the submit phase and
// debug tooling use: fetching a prior decision task's artifact, and
// creating the final task batch.
package platform

import (
	"context"

	"github.com/taskcluster/taskgraph/pkg/optimize"
)

// Client is the complete abstract platform interface a Generator's submit
// phase (and CLI debug commands, via GetArtifact) consume. Concrete
// implementations live in pkg/platform/fake (in-memory, for tests and the
// end-to-end scenarios) and pkg/platform/http (a minimal real client).
type Client interface {
	optimize.PlatformClient

	// GetArtifact fetches a named artifact from a previously-run task. Used
	// to resolve "task-id=<id>" parameter references against a prior
	// decision task's parameters.yml.
	GetArtifact(ctx context.Context, taskID, name string) ([]byte, error)

	// CreateTasks submits the final task batch in one atomic call: either
	// every task in defs is created, or none are and an error is returned.
	// defs is keyed by final task-id, each value the task's wire-format
	// definition. rootTaskID is the decision task whose scopes authorize the
	// batch.
	CreateTasks(ctx context.Context, defs map[string]map[string]any, rootTaskID string) error
}
