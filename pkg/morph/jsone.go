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
	"context"
	"fmt"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"

	"github.com/taskcluster/taskgraph/pkg/expr"
)

// applyJSONeMorph implements apply-jsone: a final expression-language
// substitution over wire-format task fields, run once every label has a
// final task-id, so a task definition can reference the now-complete
// label-to-taskid mapping (e.g. "${tasks['build-linux']}") in a way that
// wasn't possible any earlier in the pipeline. "${...}" is this engine's
// substitution syntax, evaluated by pkg/expr, a CEL-based stand-in for the
// JSON-e collaborator the spec treats as opaque to the core.
func applyJSONeMorph(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, params *parameters.Parameters, gc *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
	taskIDs := make(map[string]any, len(labelToTaskID))
	for l, id := range labelToTaskID {
		taskIDs[string(l)] = id
	}
	vars := map[string]any{
		"tasks":      taskIDs,
		"parameters": paramsToVars(params),
	}

	for _, t := range tasks {
		rewritten, err := substitute(t.TaskDefinition, vars)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("apply-jsone on %q: %w", t.Label, err)
		}
		m, _ := rewritten.(map[string]any)
		t.TaskDefinition = m
	}
	return g, tasks, labelToTaskID, nil
}

func paramsToVars(params *parameters.Parameters) map[string]any {
	out := map[string]any{}
	if params == nil {
		return out
	}
	for k, v := range params.All() {
		out[k] = value.ToAny(v)
	}
	return out
}

// substitute walks a decoded wire-format value, evaluating any string
// entirely wrapped in "${...}" via pkg/expr and recursing into lists and
// maps; every other leaf passes through unchanged.
func substitute(v any, vars map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "${") && strings.HasSuffix(t, "}") && len(t) > 3 {
			expression := t[2 : len(t)-1]
			return expr.Eval(expression, vars)
		}
		return t, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := substitute(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := substitute(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
