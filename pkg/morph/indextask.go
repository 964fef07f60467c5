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

package morph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// dockerImageIndexTaskLabel is the label of the docker-image kind task that
// builds the helper image insert-indexes.js runs in, following the
// "build-docker-image-<name>" convention the docker-image transform
// assigns its own emitted tasks.
const dockerImageIndexTaskLabel = "build-docker-image-index-task"

// MakeIndexTask builds the helper task that inserts origin's index routes
// at run-time via insert-indexes.js, given origin's and the index-task
// docker image's already-resolved task-ids, and returns the new task along
// with the task-id assigned to it.
func MakeIndexTask(origin *task.Task, originTaskID, dockerTaskID string, indexRoutes []string, gc *graphconfig.GraphConfig) (*task.Task, string, error) {
	if originTaskID == "" {
		return nil, "", fmt.Errorf("morph: origin task %q has no resolved task-id", origin.Label)
	}

	scopes := summarizeIndexScopes(indexRoutes, gc.IndexPathRegexes())
	rank := indexRank(origin)

	deadline, _ := origin.TaskDefinition["deadline"].(string)
	expires, _ := origin.TaskDefinition["expires"].(string)

	description := "Indexing " + origin.Label
	owner := "nobody@taskgraph.invalid"
	if meta, ok := origin.TaskDefinition["metadata"].(map[string]any); ok {
		if o, ok := meta["owner"].(string); ok && o != "" {
			owner = o
		}
	}

	provisionerID, _ := origin.TaskDefinition["provisionerId"].(string)
	workerType, _ := origin.TaskDefinition["workerType"].(string)

	indexLabel := origin.Label + "-index"

	def := task.Definition{
		"provisionerId": provisionerID,
		"workerType":    workerType,
		"deadline":      deadline,
		"expires":       expires,
		"scopes":        toAnySlice(scopes),
		"routes":        []any{},
		"metadata": map[string]any{
			"name":        indexLabel,
			"description": description,
			"owner":       owner,
		},
		"payload": map[string]any{
			"image": map[string]any{
				"taskId": dockerTaskID,
				"path":   "public/image.tar.zst",
			},
			"command": []any{"insert-indexes.js"},
			"env": map[string]any{
				"TARGET_TASKID": originTaskID,
				"INDEX_RANK":    rank,
			},
			"features":   map[string]any{"taskclusterProxy": true},
			"maxRunTime": int64(600),
		},
	}
	def.SetDependencies([]string{originTaskID, dockerTaskID})
	// origin may have already failed or been exception'd by the time this
	// runs; the index should still be recorded either way.
	def.SetRequires("all-resolved")

	indexTask := &task.Task{
		Kind:           "index-task",
		Label:          indexLabel,
		Attributes:     map[string]value.Value{},
		Dependencies:   map[string]string{"primary": origin.Label, "docker-image": dockerImageIndexTaskLabel},
		TaskDefinition: map[string]any(def),
	}
	return indexTask, uuid.NewString(), nil
}

// indexRank extracts task.extra.index.rank, defaulting to 0 when absent.
func indexRank(t *task.Task) any {
	extra, _ := t.TaskDefinition["extra"].(map[string]any)
	if extra == nil {
		return int64(0)
	}
	idx, _ := extra["index"].(map[string]any)
	if idx == nil {
		return int64(0)
	}
	if r, ok := idx["rank"]; ok {
		return r
	}
	return int64(0)
}

// summarizeIndexScopes collapses a task's index.* routes into
// "index:insert-task:<path>" scopes, applying each of graphConfig's
// index-path-regexes to fold dynamic path segments (dates, revisions) into
// a single wildcard scope rather than minting one scope per distinct value.
func summarizeIndexScopes(routes []string, regexes []string) []string {
	compiled := make([]*regexp.Regexp, 0, len(regexes))
	for _, r := range regexes {
		if re, err := regexp.Compile(r); err == nil {
			compiled = append(compiled, re)
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, route := range routes {
		path := strings.TrimPrefix(route, "index.")
		for _, re := range compiled {
			path = re.ReplaceAllString(path, "*")
		}
		scope := "index:insert-task:" + path
		if seen[scope] {
			continue
		}
		seen[scope] = true
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}
