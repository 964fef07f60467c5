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

// Package morph implements the post-optimization pass over the submittable
// graph: named, registered transformations that mutate wire-format task
// definitions in place, once every label has a final task-id. Morphs run
// in registration order, not re-sorted by name or dependency (see
// DESIGN.md's "morph ordering" decision).
package morph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// Func is a single registered morph. It receives the current graph, task
// set, and label-to-taskid assignment and returns the (possibly changed)
// versions of all three.
type Func func(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, params *parameters.Parameters, gc *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error)

type namedFunc struct {
	name string
	fn   Func
}

var registeredMorphs []namedFunc

// Register appends fn to the run order under name. Called from this
// package's init for the built-in morphs; project registration hooks may
// call it too to add their own.
func Register(name string, fn Func) {
	registeredMorphs = append(registeredMorphs, namedFunc{name: name, fn: fn})
}

// Run applies every registered morph in turn, each seeing the prior morph's
// output, and returns the final graph, task set, and label-to-taskid
// assignment.
func Run(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, params *parameters.Parameters, gc *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
	var err error
	for _, nf := range registeredMorphs {
		g, tasks, labelToTaskID, err = nf.fn(ctx, g, tasks, labelToTaskID, params, gc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("morph %q: %w", nf.name, err)
		}
	}
	return g, tasks, labelToTaskID, nil
}

func init() {
	Register("make-index-task", makeIndexTaskMorph)
	Register("apply-jsone", applyJSONeMorph)
	Register("add-chain-of-trust", addChainOfTrustMorph)
}

// makeIndexTaskMorph implements make-index-task: every task carrying
// "index.*" routes has them stripped and replaced with a dependency on a
// generated helper task that inserts them at run-time via
// insert-indexes.js, so workers that can't register routes themselves
// still get indexed. When the graph has no task labelled
// dockerImageIndexTaskLabel, every task is left unchanged.
func makeIndexTaskMorph(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, params *parameters.Parameters, gc *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
	dockerTaskID, hasDocker := labelToTaskID[dockerImageIndexTaskLabel]

	labels := make([]graph.Label, 0, len(tasks))
	for l := range tasks {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	nodes := g.Nodes()
	edges := g.Edges()

	for _, label := range labels {
		t := tasks[label]
		def := t.Definition()
		indexRoutes := filterPrefix(def.Routes(), "index.")
		if len(indexRoutes) == 0 || !hasDocker {
			continue
		}

		indexTask, taskID, err := MakeIndexTask(t, labelToTaskID[label], dockerTaskID, indexRoutes, gc)
		if err != nil {
			return nil, nil, nil, err
		}

		def.SetRoutes(withoutPrefix(def.Routes(), "index."))

		indexLabel := graph.Label(indexTask.Label)
		tasks[indexLabel] = indexTask
		labelToTaskID[indexLabel] = taskID

		nodes = append(nodes, indexLabel)
		edges = append(edges,
			graph.Edge{From: indexLabel, To: label, Name: "primary"},
			graph.Edge{From: indexLabel, To: graph.Label(dockerImageIndexTaskLabel), Name: "docker-image"},
		)
	}

	return graph.New(nodes, edges), tasks, labelToTaskID, nil
}

func filterPrefix(ss []string, prefix string) []string {
	var out []string
	for _, s := range ss {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func withoutPrefix(ss []string, prefix string) []string {
	var out []string
	for _, s := range ss {
		if !strings.HasPrefix(s, prefix) {
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
