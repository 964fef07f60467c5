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

package task

// Definition is a typed view over a Task's TaskDefinition, covering the
// small set of well-known keys morphs touch (routes, dependencies,
// requires, taskGroupId); everything else in TaskDefinition stays opaque
// map[string]any.
type Definition map[string]any

// Definition returns a typed view over t.TaskDefinition. Mutations through
// the returned accessors write back into t.TaskDefinition directly.
func (t *Task) Definition() Definition {
	if t.TaskDefinition == nil {
		t.TaskDefinition = map[string]any{}
	}
	return Definition(t.TaskDefinition)
}

// Routes returns the task's route strings.
func (d Definition) Routes() []string {
	return stringSlice(d["routes"])
}

// SetRoutes replaces the task's route strings.
func (d Definition) SetRoutes(routes []string) {
	d["routes"] = toAnySlice(routes)
}

// Dependencies returns the task's wire-format dependency task-ids (distinct
// from pkg/task.Task.Dependencies, which maps edge-name to label before
// labels are resolved to task-ids).
func (d Definition) Dependencies() []string {
	return stringSlice(d["dependencies"])
}

// SetDependencies replaces the task's wire-format dependency task-ids.
func (d Definition) SetDependencies(ids []string) {
	d["dependencies"] = toAnySlice(ids)
}

// Requires returns the task's "requires" field (e.g. "all-completed"),
// empty if unset.
func (d Definition) Requires() string {
	s, _ := d["requires"].(string)
	return s
}

// SetRequires sets the task's "requires" field.
func (d Definition) SetRequires(requires string) {
	d["requires"] = requires
}

// TaskGroupID returns the task's taskGroupId, empty if unset.
func (d Definition) TaskGroupID() string {
	s, _ := d["taskGroupId"].(string)
	return s
}

// SetTaskGroupID sets the task's taskGroupId, the decision task's id for
// every task submitted in one run.
func (d Definition) SetTaskGroupID(id string) {
	d["taskGroupId"] = id
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
