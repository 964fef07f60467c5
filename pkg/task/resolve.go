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

import (
	"fmt"
	"sort"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
)

// Limits bounds the per-task edge count, configurable from GraphConfig.
type Limits struct {
	MaxRoutes int
	MaxDeps   int
}

// DefaultLimits matches the platform's route and dependency caps.
var DefaultLimits = Limits{MaxRoutes: 64, MaxDeps: 9999}

// ResolveDependencies validates every edge target exists, checks the
// per-task edge-count limit, enforces the reserved docker-image edge name,
// builds the full Graph, and detects cycles. It returns the assembled
// Graph on success.
func ResolveDependencies(tasks Set, limits Limits, dockerImageEdgeAllowed map[string]bool) (*graph.Graph, error) {
	// Step 1/2: every label referenced in dependencies/soft/if deps must exist.
	var missing []string
	for label, t := range tasks {
		for edgeName, dep := range t.Dependencies {
			if edgeName == ReservedDockerImageEdge && !dockerImageEdgeAllowed[label] {
				return nil, &taskerrors.DependencyError{
					Labels: []string{label},
					Err:    fmt.Errorf("task %q uses reserved edge name %q", label, ReservedDockerImageEdge),
				}
			}
			if _, ok := tasks[dep]; !ok {
				missing = append(missing, fmt.Sprintf("%s -(%s)-> %s", label, edgeName, dep))
			}
		}
		for _, dep := range t.SoftDependencies {
			if _, ok := tasks[dep]; !ok {
				missing = append(missing, fmt.Sprintf("%s -(soft)-> %s", label, dep))
			}
		}
		for _, edgeName := range t.IfDependencies {
			if _, ok := t.Dependencies[edgeName]; !ok {
				missing = append(missing, fmt.Sprintf("%s: if_dependencies references unknown edge %q", label, edgeName))
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &taskerrors.DependencyError{
			Labels: missing,
			Err:    fmt.Errorf("unresolved dependency labels"),
		}
	}

	// Step 6: per-task edge-count and route-count limits.
	for label, t := range tasks {
		if len(t.Dependencies) > limits.MaxDeps {
			return nil, &taskerrors.DependencyError{
				Labels: []string{label},
				Err:    fmt.Errorf("task %q has %d dependencies, exceeding the limit of %d", label, len(t.Dependencies), limits.MaxDeps),
			}
		}
		if routes := t.Definition().Routes(); len(routes) > limits.MaxRoutes {
			return nil, &taskerrors.DependencyError{
				Labels: []string{label},
				Err:    fmt.Errorf("task %q has %d routes, exceeding the limit of %d", label, len(routes), limits.MaxRoutes),
			}
		}
	}

	// Step 4/5: build the graph and detect cycles.
	g := tasks.ToGraph()
	if err := g.CheckAcyclic(); err != nil {
		ce := graph.AsCycleError(err)
		labels := make([]string, 0, len(ce.Labels))
		for _, l := range ce.Labels {
			labels = append(labels, string(l))
		}
		return nil, &taskerrors.DependencyError{Labels: labels, Err: err}
	}

	return g, nil
}

// CheckLabelUniqueness is redundant with the Set/map representation (a Go
// map cannot hold a duplicate key), but loaders call it explicitly right
// after assembling the full task list from multiple kinds, to turn "two
// kinds emitted the same label" into a LoaderError with both offending
// kinds named, rather than a silent overwrite.
func CheckLabelUniqueness(perKind map[string][]*Task) (Set, error) {
	out := make(Set)
	owner := make(map[string]string)
	for kind, tasks := range perKind {
		for _, t := range tasks {
			if prev, ok := owner[t.Label]; ok {
				return nil, &taskerrors.LoaderError{
					Kind: kind,
					Err:  fmt.Errorf("duplicate label %q also produced by kind %q", t.Label, prev),
				}
			}
			owner[t.Label] = kind
			out[t.Label] = t
		}
	}
	return out, nil
}
