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

package optimize

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/timeutil"
)

// taskDeadline resolves a task's own wire-format "deadline" (a relative
// duration string like "1 day") to an absolute time anchored at the
// parameters' build_date, the same anchor task.deadline/task.expires are
// computed from at submission time.
func taskDeadline(params *parameters.Parameters, t *task.Task) time.Time {
	base := time.Unix(0, 0).UTC()
	if bd, err := params.Get("build_date"); err == nil {
		if i, ok := bd.AsInt(); ok {
			base = time.Unix(i, 0).UTC()
		}
	}
	deadlineStr, _ := t.TaskDefinition["deadline"].(string)
	if deadlineStr == "" {
		return time.Time{}
	}
	d, err := timeutil.FromNow(deadlineStr, base)
	if err != nil {
		return time.Time{}
	}
	return d
}

// dependentIsSoft reports whether every edge from dep to label is one of
// dep's if-dependencies, meaning dep doesn't block label's removal: if label
// goes away, dep is removed in the subsequent if-dependencies fixpoint
// rather than needing to be gone beforehand.
func dependentIsSoft(dep *task.Task, label graph.Label) bool {
	ifDeps := make(map[string]bool, len(dep.IfDependencies))
	for _, e := range dep.IfDependencies {
		ifDeps[e] = true
	}
	foundEdge := false
	for edgeName, depLabel := range dep.Dependencies {
		if depLabel != string(label) {
			continue
		}
		foundEdge = true
		if !ifDeps[edgeName] {
			return false
		}
	}
	return foundEdge
}

func sortedOptimizationNames(spec task.OptimizationSpec) []string {
	names := lo.Keys(spec)
	sort.Strings(names)
	return names
}

// Run reduces g (the target+deps graph) to the optimized graph: seed from
// existing_tasks, visit in reverse-topological (dependents-first) order,
// apply removal strategies under the "all reverse dependents gone"
// invariant, else apply replacement strategies under the "replacement
// still meets every dependent's deadline" invariant, then run the
// if-dependencies fixpoint.
func Run(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, targetSet map[graph.Label]bool, params *parameters.Parameters, platform PlatformClient) (*graph.Graph, map[graph.Label]*task.Task, Log, error) {
	doNotOptimize := map[string]bool{}
	for _, l := range params.StringList("do_not_optimize") {
		doNotOptimize[l] = true
	}
	optimizeTargetTasks := params.Bool("optimize_target_tasks")
	existing := params.ExistingTasks()

	order, err := g.VisitPreorder()
	if err != nil {
		return nil, nil, nil, err
	}
	dependents := g.ReverseLinksDict()

	removed := map[graph.Label]bool{}
	replaced := map[graph.Label]string{}
	var logEntries Log

	existingLabels := lo.Keys(existing)
	sort.Strings(existingLabels)
	for _, l := range existingLabels {
		replaced[graph.Label(l)] = existing[l]
		logEntries = append(logEntries, LogEntry{Label: l, Decision: DecisionReplaced, Strategy: "existing_tasks", ReplacementTaskID: existing[l]})
		recordDecision(DecisionReplaced, "existing_tasks")
	}

	var indexPaths []string
	for _, label := range order {
		if _, seeded := replaced[label]; seeded {
			continue
		}
		t, ok := tasks[label]
		if !ok || doNotOptimize[string(label)] {
			continue
		}
		for _, name := range sortedOptimizationNames(t.Optimization) {
			if name != "index-search" {
				continue
			}
			paths, _ := t.Optimization[name].AsList()
			for _, p := range paths {
				if s, ok := p.AsString(); ok {
					indexPaths = append(indexPaths, s)
				}
			}
		}
	}
	var batch *Batch
	if len(indexPaths) > 0 && platform != nil {
		batch, err = NewBatch(ctx, platform, indexPaths)
		if err != nil {
			return nil, nil, nil, &taskerrors.OptimizerError{Err: err}
		}
	}

	for _, label := range order {
		if _, seeded := replaced[label]; seeded {
			continue
		}
		t, ok := tasks[label]
		if !ok {
			continue
		}
		ls := string(label)

		if doNotOptimize[ls] {
			continue
		}
		if !optimizeTargetTasks && targetSet[label] && !t.HasAttribute("always_target") {
			continue
		}
		if len(t.Optimization) == 0 {
			continue
		}

		allDependentsGone := true
		var maxDeadline time.Time
		for dep := range dependents[label] {
			if removed[dep] {
				continue
			}
			if _, isReplaced := replaced[dep]; isReplaced {
				continue
			}
			depTask, ok := tasks[dep]
			if ok && dependentIsSoft(depTask, label) {
				continue
			}
			allDependentsGone = false
			if ok {
				dl := taskDeadline(params, depTask)
				if !dl.IsZero() && dl.After(maxDeadline) {
					maxDeadline = dl
				}
			}
		}

		names := sortedOptimizationNames(t.Optimization)

		if allDependentsGone {
			removedThisTask := false
			for _, name := range names {
				strat, ok := StrategyRegistry.Get(name)
				if !ok {
					continue
				}
				if strat.ShouldRemoveTask(t, params, t.Optimization[name]) {
					removed[label] = true
					logEntries = append(logEntries, LogEntry{Label: ls, Decision: DecisionRemoved, Strategy: name})
					recordDecision(DecisionRemoved, name)
					removedThisTask = true
					break
				}
			}
			if removedThisTask {
				continue
			}
		}

		for _, name := range names {
			strat, ok := StrategyRegistry.Get(name)
			if !ok {
				continue
			}
			if id, ok := strat.ShouldReplaceTask(ctx, t, params, maxDeadline, t.Optimization[name], batch); ok {
				replaced[label] = id
				logEntries = append(logEntries, LogEntry{Label: ls, Decision: DecisionReplaced, Strategy: name, ReplacementTaskID: id})
				recordDecision(DecisionReplaced, name)
				break
			}
		}
	}

	applyIfDependenciesFixpoint(tasks, removed, replaced, &logEntries)

	survivingGraph, survivingTasks := buildSurvivingGraph(tasks, removed, replaced)
	return survivingGraph, survivingTasks, logEntries, nil
}

// applyIfDependenciesFixpoint removes any task whose if_dependencies edges
// all point at removed tasks, re-evaluating until no further change.
func applyIfDependenciesFixpoint(tasks map[graph.Label]*task.Task, removed map[graph.Label]bool, replaced map[graph.Label]string, logEntries *Log) {
	labels := make([]graph.Label, 0, len(tasks))
	for l := range tasks {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	for {
		changed := false
		for _, label := range labels {
			if removed[label] {
				continue
			}
			if _, isReplaced := replaced[label]; isReplaced {
				continue
			}
			t := tasks[label]
			if len(t.IfDependencies) == 0 {
				continue
			}
			anyKept := false
			for _, edgeName := range t.IfDependencies {
				depLabelStr, ok := t.Dependencies[edgeName]
				if !ok {
					continue
				}
				if removed[graph.Label(depLabelStr)] {
					continue
				}
				anyKept = true
			}
			if !anyKept {
				removed[label] = true
				*logEntries = append(*logEntries, LogEntry{Label: string(label), Decision: DecisionRemoved, Strategy: "if-dependencies"})
				recordDecision(DecisionRemoved, "if-dependencies")
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// buildSurvivingGraph assembles the optimized graph and task set: surviving
// tasks are cloned with their dependencies rewritten to point at
// replacement task-ids where applicable, and soft dependencies on a removed
// or replaced label dropped (see DESIGN.md's "soft dependencies under
// replacement" decision).
func buildSurvivingGraph(tasks map[graph.Label]*task.Task, removed map[graph.Label]bool, replaced map[graph.Label]string) (*graph.Graph, map[graph.Label]*task.Task) {
	survivors := map[graph.Label]*task.Task{}
	var nodes []graph.Label
	var edges []graph.Edge

	labels := make([]graph.Label, 0, len(tasks))
	for l := range tasks {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	for _, label := range labels {
		if removed[label] {
			continue
		}
		if _, isReplaced := replaced[label]; isReplaced {
			continue
		}
		t := tasks[label]
		clone := t.Clone()
		newDeps := map[string]string{}
		for edgeName, depLabel := range t.Dependencies {
			dl := graph.Label(depLabel)
			if id, ok := replaced[dl]; ok {
				newDeps[edgeName] = id
				continue
			}
			if removed[dl] {
				continue
			}
			newDeps[edgeName] = depLabel
			edges = append(edges, graph.Edge{From: label, To: dl, Name: edgeName})
		}
		clone.Dependencies = newDeps

		var softDeps []string
		for _, sd := range t.SoftDependencies {
			sdl := graph.Label(sd)
			if removed[sdl] {
				continue
			}
			if _, isReplaced := replaced[sdl]; isReplaced {
				continue
			}
			softDeps = append(softDeps, sd)
		}
		clone.SoftDependencies = softDeps

		survivors[label] = clone
		nodes = append(nodes, label)
	}

	return graph.New(nodes, edges), survivors
}
