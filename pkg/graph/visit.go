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

// visit implements Kahn's algorithm. When reverse is false, a node is
// emitted only after every node it depends on (outgoing edges) has been
// emitted — i.e. postorder with respect to the dependency relation. When
// reverse is true, a node is emitted only after every node that depends on
// it (incoming edges) has been emitted.
//
// Ties are broken lexicographically by label so that the result is
// deterministic, which the optimizer's determinism guarantee (spec §4.8)
// depends on.
func (g *Graph) visit(reverse bool) ([]Label, error) {
	forward := g.LinksDict()
	reverseLinks := g.ReverseLinksDict()

	dependencies, dependents := forward, reverseLinks
	if reverse {
		dependencies, dependents = reverseLinks, forward
	}

	indegree := make(map[Label]int, len(g.nodes))
	for n := range g.nodes {
		indegree[n] = len(dependencies[n])
	}

	var ready []Label
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]Label, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		var newlyReady []Label
		for dependent := range dependents[node] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return newlyReady[i] < newlyReady[j] })
		ready = append(ready, newlyReady...)
	}

	if len(order) != len(g.nodes) {
		var stuck []Label
		for n, d := range indegree {
			if d > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, &CycleError{Labels: stuck}
	}
	return order, nil
}

// VisitPostorder returns nodes ordered so that every node appears after
// every node it depends on (following outgoing edges). Returns a
// *CycleError if the graph contains a cycle.
func (g *Graph) VisitPostorder() ([]Label, error) {
	return g.visit(false)
}

// VisitPreorder returns nodes ordered so that every node appears before any
// node it depends on — the reverse of VisitPostorder. Returns a *CycleError
// if the graph contains a cycle.
func (g *Graph) VisitPreorder() ([]Label, error) {
	return g.visit(true)
}

// CheckAcyclic is a convenience wrapper that discards the order and returns
// only the error, used by phases that need cycle detection but not an
// ordering.
func (g *Graph) CheckAcyclic() error {
	_, err := g.VisitPostorder()
	return err
}
