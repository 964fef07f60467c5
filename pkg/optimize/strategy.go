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

// Package optimize implements the target+deps -> optimized graph reduction:
// each task is either kept, removed, or replaced by a previously-computed
// task-id, decided by consulting named Strategy objects in
// reverse-topological (dependents-first) order.
package optimize

import (
	"context"
	"time"

	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/registry"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// TaskStatus is the subset of a platform task's status the optimizer needs
// to decide whether a candidate replacement is still usable.
type TaskStatus struct {
	State   string
	Expires time.Time
}

// PlatformClient is the subset of the platform client the optimizer needs.
// GetTaskStatuses is batched so that N strategies querying M index paths
// cost one round trip, not N*M.
type PlatformClient interface {
	FindTaskByIndex(ctx context.Context, indexPath string) (taskID string, found bool, err error)
	GetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]TaskStatus, error)
}

// Strategy is consulted once per optimization-spec entry on a task. Most
// strategies meaningfully implement only one of the two methods; the other
// should return a zero value (false / "", false).
type Strategy interface {
	ShouldRemoveTask(t *task.Task, params *parameters.Parameters, arg value.Value) bool
	ShouldReplaceTask(ctx context.Context, t *task.Task, params *parameters.Parameters, deadline time.Time, arg value.Value, batch *Batch) (taskID string, ok bool)
}

// StrategyRegistry is the process-wide, write-once registry of named
// strategies.
var StrategyRegistry = registry.New[Strategy]()

func init() {
	StrategyRegistry.Register("index-search", indexSearchStrategy{})
	StrategyRegistry.Register("skip-unless-changed", skipUnlessChangedStrategy{})
}

// baseStrategy gives every concrete strategy a no-op default for whichever
// of the two Strategy methods it doesn't meaningfully implement.
type baseStrategy struct{}

func (baseStrategy) ShouldRemoveTask(*task.Task, *parameters.Parameters, value.Value) bool {
	return false
}

func (baseStrategy) ShouldReplaceTask(context.Context, *task.Task, *parameters.Parameters, time.Time, value.Value, *Batch) (string, bool) {
	return "", false
}
