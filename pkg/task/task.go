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

// Package task defines the Task record carried through a kind's transform
// pipeline, deep-merge semantics for task-defaults application, and the
// full-graph dependency-resolution pass.
package task

import (
	"strconv"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// ReservedDockerImageEdge is the edge name reserved for the docker-image
// transform's own emission; user tasks may not use it.
const ReservedDockerImageEdge = "docker-image"

// OptimizationSpec is the `strategy-name -> arg` mapping on a Task's
// optimization field.
type OptimizationSpec map[string]value.Value

// Task is the per-task record produced by a kind's transform pipeline.
type Task struct {
	Kind string
	// Label is empty until the "task" built-in transform (or an equivalent
	// user transform) assigns it; by the time the full graph is assembled it
	// must be set and globally unique.
	Label string

	Attributes map[string]value.Value
	// Dependencies maps an arbitrary edge-name to the label of the
	// dependency. The edge name "docker-image" is reserved.
	Dependencies map[string]string
	// SoftDependencies must exist in the full graph iff this task survives,
	// but are not pulled into the target graph's transitive closure.
	SoftDependencies []string
	// IfDependencies names edges (keys of Dependencies) that are this task's
	// "primary" dependencies for the purpose of the optimizer's
	// if-dependencies fixpoint.
	IfDependencies []string

	Optimization OptimizationSpec

	// TaskDefinition is the wire-format payload, opaque except for the
	// well-known morph keys accessed via the Definition helper type.
	TaskDefinition map[string]any

	Description string
}

// Clone returns a deep-enough copy of t suitable for mutation by a
// transform without aliasing the original's maps/slices.
func (t *Task) Clone() *Task {
	c := *t
	c.Attributes = cloneValueMap(t.Attributes)
	c.Dependencies = cloneStringMap(t.Dependencies)
	c.SoftDependencies = append([]string(nil), t.SoftDependencies...)
	c.IfDependencies = append([]string(nil), t.IfDependencies...)
	if t.Optimization != nil {
		c.Optimization = OptimizationSpec(cloneValueMap(map[string]value.Value(t.Optimization)))
	}
	c.TaskDefinition = cloneAnyMap(t.TaskDefinition)
	return &c
}

// Attribute returns attribute key, or Null if absent.
func (t *Task) Attribute(key string) value.Value {
	if t.Attributes == nil {
		return value.Null()
	}
	return t.Attributes[key]
}

// HasAttribute reports whether key is present (regardless of its value),
// used for boolean marker attributes like "always_target".
func (t *Task) HasAttribute(key string) bool {
	if t.Attributes == nil {
		return false
	}
	_, ok := t.Attributes[key]
	return ok
}

func cloneValueMap(m map[string]value.Value) map[string]value.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Set contains a collection of Tasks keyed by label.
type Set map[string]*Task

// ToGraph builds the full dependency graph from a Set: one node per label,
// one edge per dependencies entry (named by its edge name) and one per
// soft_dependencies entry. Soft edges are named "soft-dependency-<index>"
// so that several can exist without colliding. if_dependencies adds no
// edges of its own, since it names edges already in dependencies.
func (s Set) ToGraph() *graph.Graph {
	nodes := make([]graph.Label, 0, len(s))
	var edges []graph.Edge
	for label, t := range s {
		nodes = append(nodes, graph.Label(label))
		for edgeName, dep := range t.Dependencies {
			edges = append(edges, graph.Edge{From: graph.Label(label), To: graph.Label(dep), Name: edgeName})
		}
		for i, dep := range t.SoftDependencies {
			edges = append(edges, graph.Edge{From: graph.Label(label), To: graph.Label(dep), Name: softEdgeName(i)})
		}
	}
	return graph.New(nodes, edges)
}

func softEdgeName(i int) string {
	return "soft-dependency-" + strconv.Itoa(i)
}
