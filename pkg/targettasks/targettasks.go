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

// Package targettasks implements the named task-set filters a Generator's
// target_task_set phase applies (parameters.target_tasks_method, then each
// of parameters.filters).
package targettasks

import (
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/registry"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// Func decides whether t should be included in the target task set.
type Func func(t *task.Task, params *parameters.Parameters, gc *graphconfig.GraphConfig) bool

// Registry is the process-wide, write-once registry of named filters,
// mirroring target_tasks.py's _target_task_methods dict.
var Registry = registry.New[Func]()

func init() {
	Registry.Register("default", standardFilter)
	Registry.Register("all", allFilter)
}

// allFilter targets every task unconditionally, for callers (and tests)
// that want the full task set as their target set without involving
// project/cron attributes.
func allFilter(*task.Task, *parameters.Parameters, *graphconfig.GraphConfig) bool {
	return true
}

// standardFilter implements target_tasks_default/standard_filter: a task
// is targeted unless it's cron-only or its run_on_projects attribute
// excludes the current project.
func standardFilter(t *task.Task, params *parameters.Parameters, gc *graphconfig.GraphConfig) bool {
	return !filterOutCron(t) && filterForProject(t, params)
}

func filterOutCron(t *task.Task) bool {
	b, _ := t.Attribute("cron").AsBool()
	return b
}

// filterForProject reports whether params' project matches t's
// run_on_projects attribute, an empty or absent list meaning "all
// projects", and the literal value "all" in the list short-circuiting the
// same way.
func filterForProject(t *task.Task, params *parameters.Parameters) bool {
	list, ok := t.Attribute("run_on_projects").AsList()
	if !ok || len(list) == 0 {
		return true
	}
	project := params.String("project")
	for _, v := range list {
		s, ok := v.AsString()
		if !ok {
			continue
		}
		if s == "all" || s == project {
			return true
		}
	}
	return false
}

// Apply runs a named filter over the given tasks (keyed by label),
// returning the labels that survive.
func Apply(name string, tasks map[string]*task.Task, params *parameters.Parameters, gc *graphconfig.GraphConfig) ([]string, bool) {
	fn, ok := Registry.Get(name)
	if !ok {
		return nil, false
	}
	var out []string
	for label, t := range tasks {
		if fn(t, params, gc) {
			out = append(out, label)
		}
	}
	return out, true
}
