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

// Package graph implements an immutable directed graph of labeled nodes
// connected by named edges.
//
// It underlies every phase of task-graph generation: kinds are ordered by
// their own dependency graph, the full task set is assembled into a graph to
// detect cycles and compute closures, and the optimizer walks the
// target+deps graph in reverse topological order.
//
// Operations never mutate the receiver; they return a new Graph (or, for
// pure queries, a value derived from it). Two graphs with the same nodes and
// edges compare equal.
package graph
