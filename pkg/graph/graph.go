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

package graph

import "sort"

// Label uniquely identifies a node, conventionally "<kind>-<name>".
type Label string

// Edge is a named, directed connection between two labels.
type Edge struct {
	From Label
	To   Label
	Name string
}

// Graph is an immutable directed graph of Labels connected by named Edges.
// It permits at most one edge of a given name between any pair of nodes. It
// is not itself checked for cycles; VisitPostorder reports CycleError if one
// is found.
type Graph struct {
	nodes map[Label]struct{}
	edges map[Edge]struct{}
}

// New builds a Graph from the given nodes and edges. Edges whose endpoints
// are not present in nodes are retained as-is; callers that need referential
// integrity should check with Nodes() before calling New, or rely on the
// dependency-resolution pass in pkg/task to validate edges up front.
func New(nodes []Label, edges []Edge) *Graph {
	g := &Graph{
		nodes: make(map[Label]struct{}, len(nodes)),
		edges: make(map[Edge]struct{}, len(edges)),
	}
	for _, n := range nodes {
		g.nodes[n] = struct{}{}
	}
	for _, e := range edges {
		g.edges[e] = struct{}{}
	}
	return g
}

// Nodes returns the sorted labels in the graph.
func (g *Graph) Nodes() []Label {
	out := make([]Label, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasNode reports whether label is a node of g.
func (g *Graph) HasNode(label Label) bool {
	_, ok := g.nodes[label]
	return ok
}

// Edges returns all edges in the graph in a deterministic order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Equal reports whether g and other have identical node and edge sets.
func (g *Graph) Equal(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for n := range g.nodes {
		if _, ok := other.nodes[n]; !ok {
			return false
		}
	}
	for e := range g.edges {
		if _, ok := other.edges[e]; !ok {
			return false
		}
	}
	return true
}

// TransitiveClosure returns the subgraph containing every node in roots plus
// every node reachable from them by following edges, and the edges between
// them. If reverse is true, "reachable" follows edges backward: the result
// is the set of nodes that can reach any node in roots.
func (g *Graph) TransitiveClosure(roots map[Label]struct{}, reverse bool) *Graph {
	newNodes := make(map[Label]struct{}, len(roots))
	for n := range roots {
		newNodes[n] = struct{}{}
	}
	newEdges := make(map[Edge]struct{})

	for {
		addedNode := false
		for e := range g.edges {
			from, to := e.From, e.To
			if reverse {
				from, to = to, from
			}
			if _, ok := newNodes[from]; !ok {
				continue
			}
			if _, ok := newEdges[e]; !ok {
				newEdges[e] = struct{}{}
			}
			if _, ok := newNodes[to]; !ok {
				newNodes[to] = struct{}{}
				addedNode = true
			}
		}
		if !addedNode {
			break
		}
	}

	nodes := make([]Label, 0, len(newNodes))
	for n := range newNodes {
		nodes = append(nodes, n)
	}
	edges := make([]Edge, 0, len(newEdges))
	for e := range newEdges {
		edges = append(edges, e)
	}
	return New(nodes, edges)
}

// LinksDict maps each node to the set of nodes it has an outgoing edge to,
// omitting edge names.
func (g *Graph) LinksDict() map[Label]map[Label]struct{} {
	out := make(map[Label]map[Label]struct{}, len(g.nodes))
	for n := range g.nodes {
		out[n] = map[Label]struct{}{}
	}
	for e := range g.edges {
		if out[e.From] == nil {
			out[e.From] = map[Label]struct{}{}
		}
		out[e.From][e.To] = struct{}{}
	}
	return out
}

// ReverseLinksDict is LinksDict with edges reversed: each node maps to the
// set of nodes with an outgoing edge to it.
func (g *Graph) ReverseLinksDict() map[Label]map[Label]struct{} {
	out := make(map[Label]map[Label]struct{}, len(g.nodes))
	for n := range g.nodes {
		out[n] = map[Label]struct{}{}
	}
	for e := range g.edges {
		if out[e.To] == nil {
			out[e.To] = map[Label]struct{}{}
		}
		out[e.To][e.From] = struct{}{}
	}
	return out
}

// NamedLinksDict maps each node to a map of edge-name to target label. If
// two edges share a (From, Name) pair, only one of them appears, and which
// one is not defined.
func (g *Graph) NamedLinksDict() map[Label]map[string]Label {
	out := make(map[Label]map[string]Label, len(g.nodes))
	for n := range g.nodes {
		out[n] = map[string]Label{}
	}
	for e := range g.edges {
		if out[e.From] == nil {
			out[e.From] = map[string]Label{}
		}
		out[e.From][e.Name] = e.To
	}
	return out
}
