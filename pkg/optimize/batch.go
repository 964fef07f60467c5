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

package optimize

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Batch is a single prefetch of every index path needed to evaluate
// index-search strategies across a whole optimization pass, so that N tasks
// with index-search specs cost one FindTaskByIndex fan-out plus one
// GetTaskStatuses call rather than 2*N round trips. Mirrors
// strategies.py's "batched call optimization instead of two queries per
// index path" comment on IndexSearch.should_replace_task.
type Batch struct {
	pathToTaskID map[string]string
	statuses     map[string]TaskStatus
}

// NewBatch resolves every unique path in indexPaths concurrently, one
// golang.org/x/sync/errgroup goroutine per path with no concurrency limit,
// and then fetches every resulting task-id's status in a single call.
func NewBatch(ctx context.Context, platform PlatformClient, indexPaths []string) (*Batch, error) {
	unique := lo.Uniq(indexPaths)

	var mu sync.Mutex
	pathToTaskID := make(map[string]string, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range unique {
		path := path
		g.Go(func() error {
			taskID, found, err := platform.FindTaskByIndex(gctx, path)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			mu.Lock()
			pathToTaskID[path] = taskID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	taskIDs := lo.Uniq(lo.Values(pathToTaskID))

	statuses := map[string]TaskStatus{}
	if len(taskIDs) > 0 {
		var err error
		statuses, err = platform.GetTaskStatuses(ctx, taskIDs)
		if err != nil {
			return nil, err
		}
	}

	return &Batch{pathToTaskID: pathToTaskID, statuses: statuses}, nil
}

// Lookup returns the task-id a prefetched index path resolved to, and its
// status, or ok=false if the path had no indexed task.
func (b *Batch) Lookup(indexPath string) (taskID string, status TaskStatus, ok bool) {
	if b == nil {
		return "", TaskStatus{}, false
	}
	taskID, ok = b.pathToTaskID[indexPath]
	if !ok {
		return "", TaskStatus{}, false
	}
	status, ok = b.statuses[taskID]
	return taskID, status, ok
}
