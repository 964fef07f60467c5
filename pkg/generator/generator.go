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

// Package generator implements the six-phase task-graph generation
// pipeline (full -> target -> target+deps -> optimized -> morphed),
// exposed as memoized accessor methods on Generator.
package generator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/kind"
	"github.com/taskcluster/taskgraph/pkg/morph"
	"github.com/taskcluster/taskgraph/pkg/optimize"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/targettasks"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	_ "github.com/taskcluster/taskgraph/pkg/transform/builtin"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// ParametersFunc builds Parameters once GraphConfig is available, for
// callers that need the graph config to decide on defaults (e.g. reading a
// project extension). Mirrors the `Union[Parameters, Callable[[GraphConfig],
// Parameters]]` constructor argument.
type ParametersFunc func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error)

// VerifyFunc inspects a completed phase and returns an error if something
// about the generated graph violates an invariant the caller cares about.
// Registered per phase name via AddVerification.
type VerifyFunc func(ctx context.Context, g *Generator) error

// Generator runs the phases of task-graph generation over a single
// Parameters set, memoizing each phase the first time it's requested.
type Generator struct {
	RootDir             string
	ParametersInput     ParametersFunc
	DecisionTaskID      string
	Platform            optimize.PlatformClient
	EnableVerifications bool

	verificationsMu sync.Mutex
	verifications   map[string][]VerifyFunc

	graphConfigOnce sync.Once
	graphConfig     *graphconfig.GraphConfig
	graphConfigErr  error

	parametersOnce sync.Once
	parameters     *parameters.Parameters
	parametersErr  error

	kindsOnce sync.Once
	kinds     map[string]*kind.Kind
	kindsErr  error

	kindGraphOnce sync.Once
	kindGraph     *graph.Graph
	kindGraphErr  error

	fullTaskSetOnce sync.Once
	fullTaskSet     map[string]*task.Task
	fullTaskSetErr  error

	fullTaskGraphOnce sync.Once
	fullTaskGraph     *graph.Graph
	fullTaskGraphErr  error

	targetTaskSetOnce sync.Once
	targetTaskSet     map[string]*task.Task
	targetTaskSetErr  error

	targetTaskGraphOnce   sync.Once
	targetTaskGraph       *graph.Graph
	targetTaskSetForGraph map[string]*task.Task
	targetTaskGraphErr    error

	optimizedOnce   sync.Once
	optimizedGraph  *graph.Graph
	optimizedTasks  map[string]*task.Task
	labelToTaskID   map[string]string
	optimizationLog optimize.Log
	optimizedErr    error

	morphedOnce  sync.Once
	morphedGraph *graph.Graph
	morphedTasks map[string]*task.Task
	morphedErr   error
}

// New constructs a Generator. decisionTaskID defaults to "DECISION-TASK" if
// empty, matching the original's constructor default.
func New(rootDir string, paramsInput ParametersFunc, decisionTaskID string, platform optimize.PlatformClient) *Generator {
	if rootDir == "" {
		rootDir = "taskcluster"
	}
	if decisionTaskID == "" {
		decisionTaskID = "DECISION-TASK"
	}
	return &Generator{
		RootDir:             rootDir,
		ParametersInput:     paramsInput,
		DecisionTaskID:      decisionTaskID,
		Platform:            platform,
		EnableVerifications: true,
		verifications:       map[string][]VerifyFunc{},
	}
}

// AddVerification registers fn to run after phase completes, whenever
// EnableVerifications is true.
func (g *Generator) AddVerification(phase string, fn VerifyFunc) {
	g.verificationsMu.Lock()
	defer g.verificationsMu.Unlock()
	g.verifications[phase] = append(g.verifications[phase], fn)
}

func (g *Generator) verify(ctx context.Context, phase string) error {
	if !g.EnableVerifications {
		return nil
	}
	g.verificationsMu.Lock()
	fns := append([]VerifyFunc(nil), g.verifications[phase]...)
	g.verificationsMu.Unlock()
	for _, fn := range fns {
		if err := fn(ctx, g); err != nil {
			return fmt.Errorf("verification failed for phase %q: %w", phase, err)
		}
	}
	return nil
}

// GraphConfig loads and returns the project's graph configuration.
func (g *Generator) GraphConfig(ctx context.Context) (*graphconfig.GraphConfig, error) {
	g.graphConfigOnce.Do(func() {
		gc, err := graphconfig.Load(g.RootDir)
		if err != nil {
			g.graphConfigErr = err
			return
		}
		g.graphConfig = gc
		g.graphConfigErr = g.verify(ctx, "graph_config")
	})
	return g.graphConfig, g.graphConfigErr
}

// Parameters resolves (and validates) the Parameters for this run.
func (g *Generator) Parameters(ctx context.Context) (*parameters.Parameters, error) {
	g.parametersOnce.Do(func() {
		gc, err := g.GraphConfig(ctx)
		if err != nil {
			g.parametersErr = err
			return
		}
		if g.ParametersInput == nil {
			g.parametersErr = &taskerrors.ParameterError{Err: fmt.Errorf("no parameters provided")}
			return
		}
		p, err := g.ParametersInput(gc)
		if err != nil {
			g.parametersErr = err
			return
		}
		g.parameters = p
		g.parametersErr = g.verify(ctx, "parameters")
	})
	return g.parameters, g.parametersErr
}

func (g *Generator) targetKinds(ctx context.Context) ([]string, error) {
	params, err := g.Parameters(ctx)
	if err != nil {
		return nil, err
	}
	kinds := params.StringList("target-kinds")
	sort.Strings(kinds)
	return kinds, nil
}

// Kinds loads every kind.yml the run needs: all of them if no target-kinds
// parameter is set, otherwise target-kinds and their transitive
// kind-dependencies (docker-image is included whenever the repository
// defines it, as an implicit dependency that never appears in
// kind-dependencies).
func (g *Generator) Kinds(ctx context.Context) (map[string]*kind.Kind, error) {
	g.kindsOnce.Do(func() {
		gc, err := g.GraphConfig(ctx)
		if err != nil {
			g.kindsErr = err
			return
		}
		targetKinds, err := g.targetKinds(ctx)
		if err != nil {
			g.kindsErr = err
			return
		}
		kinds, err := loadKinds(gc, targetKinds)
		if err != nil {
			g.kindsErr = err
			return
		}
		g.kinds = kinds
		g.kindsErr = g.verify(ctx, "kinds")
	})
	return g.kinds, g.kindsErr
}

func loadKinds(gc *graphconfig.GraphConfig, targetKinds []string) (map[string]*kind.Kind, error) {
	kinds := map[string]*kind.Kind{}
	if len(targetKinds) > 0 {
		queue := append([]string{"docker-image"}, targetKinds...)
		seen := map[string]bool{}
		for len(queue) > 0 {
			name := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			if seen[name] {
				continue
			}
			seen[name] = true
			k, err := kind.Load(gc, name)
			if err != nil {
				var notFound *kind.ErrNotFound
				if name == "docker-image" && isErrNotFound(err, &notFound) {
					continue
				}
				return nil, err
			}
			kinds[name] = k
			queue = append(queue, k.KindDependencies()...)
		}
		return kinds, nil
	}

	entries, err := readDirNames(gc.KindsDir())
	if err != nil {
		return nil, &taskerrors.ConfigError{Path: gc.KindsDir(), Err: err}
	}
	for _, name := range entries {
		k, err := kind.Load(gc, name)
		if err != nil {
			var notFound *kind.ErrNotFound
			if isErrNotFound(err, &notFound) {
				continue
			}
			return nil, err
		}
		kinds[name] = k
	}
	return kinds, nil
}

// KindGraph returns the dependency graph of kinds, restricted to the
// transitive closure of target-kinds (plus docker-image) when target-kinds
// is set.
func (g *Generator) KindGraph(ctx context.Context) (*graph.Graph, error) {
	g.kindGraphOnce.Do(func() {
		kinds, err := g.Kinds(ctx)
		if err != nil {
			g.kindGraphErr = err
			return
		}
		nodes := make([]graph.Label, 0, len(kinds))
		var edges []graph.Edge
		for name, k := range kinds {
			nodes = append(nodes, graph.Label(name))
			for _, dep := range k.KindDependencies() {
				edges = append(edges, graph.Edge{From: graph.Label(name), To: graph.Label(dep), Name: "kind-dependency"})
			}
		}
		kg := graph.New(nodes, edges)

		targetKinds, err := g.targetKinds(ctx)
		if err != nil {
			g.kindGraphErr = err
			return
		}
		if len(targetKinds) > 0 {
			roots := map[graph.Label]struct{}{graph.Label("docker-image"): {}}
			for _, name := range targetKinds {
				roots[graph.Label(name)] = struct{}{}
			}
			kg = kg.TransitiveClosure(roots, false)
		}
		g.kindGraph = kg
	})
	return g.kindGraph, g.kindGraphErr
}

// FullTaskSet loads every task from every loaded kind, in kind-dependency
// postorder so that a kind's loader sees its kind-dependencies' tasks.
func (g *Generator) FullTaskSet(ctx context.Context) (map[string]*task.Task, error) {
	g.fullTaskSetOnce.Do(func() {
		kinds, err := g.Kinds(ctx)
		if err != nil {
			g.fullTaskSetErr = err
			return
		}
		kg, err := g.KindGraph(ctx)
		if err != nil {
			g.fullTaskSetErr = err
			return
		}
		params, err := g.Parameters(ctx)
		if err != nil {
			g.fullTaskSetErr = err
			return
		}
		order, err := kg.VisitPostorder()
		if err != nil {
			g.fullTaskSetErr = err
			return
		}

		all := map[string]*task.Task{}
		for _, label := range order {
			kindName := string(label)
			k, ok := kinds[kindName]
			if !ok {
				continue
			}
			deps := map[string]*task.Task{}
			kindDeps := map[string]bool{}
			for _, d := range k.KindDependencies() {
				kindDeps[d] = true
			}
			for l, t := range all {
				if kindDeps[t.Kind] {
					deps[l] = t
				}
			}
			tasks, err := k.LoadTasks(ctx, params, deps)
			if err != nil {
				g.fullTaskSetErr = err
				return
			}
			for _, t := range tasks {
				if _, dup := all[t.Label]; dup {
					g.fullTaskSetErr = &taskerrors.LoaderError{Kind: kindName, Err: fmt.Errorf("duplicate task label %q", t.Label)}
					return
				}
				all[t.Label] = t
			}
		}
		g.fullTaskSet = all
		g.fullTaskSetErr = g.verify(ctx, "full_task_set")
	})
	return g.fullTaskSet, g.fullTaskSetErr
}

// FullTaskGraph adds dependency edges to the full task set, enforcing every
// task's dependency/soft-dependency/if-dependency targets exist, the
// reserved docker-image edge name, and the per-task route/dependency
// limits, then checks the assembled graph for cycles.
func (g *Generator) FullTaskGraph(ctx context.Context) (*graph.Graph, error) {
	g.fullTaskGraphOnce.Do(func() {
		tasks, err := g.FullTaskSet(ctx)
		if err != nil {
			g.fullTaskGraphErr = err
			return
		}
		gc, err := g.GraphConfig(ctx)
		if err != nil {
			g.fullTaskGraphErr = err
			return
		}
		limits := task.Limits{
			MaxRoutes: gc.MaxRoutes(task.DefaultLimits.MaxRoutes),
			MaxDeps:   gc.MaxDependencies(task.DefaultLimits.MaxDeps),
		}
		dockerImageKind := gc.DockerImageKind()
		dockerImageEdgeAllowed := make(map[string]bool, len(tasks))
		for label, t := range tasks {
			if t.Kind == dockerImageKind {
				dockerImageEdgeAllowed[label] = true
			}
		}
		full, err := task.ResolveDependencies(task.Set(tasks), limits, dockerImageEdgeAllowed)
		if err != nil {
			g.fullTaskGraphErr = err
			return
		}
		g.fullTaskGraph = full
		g.fullTaskGraphErr = g.verify(ctx, "full_task_graph")
	})
	return g.fullTaskGraph, g.fullTaskGraphErr
}

// TargetTaskSet applies parameters.target_tasks_method and then each of
// parameters.filters in sequence, each step narrowing the previous result.
func (g *Generator) TargetTaskSet(ctx context.Context) (map[string]*task.Task, error) {
	g.targetTaskSetOnce.Do(func() {
		full, err := g.FullTaskSet(ctx)
		if err != nil {
			g.targetTaskSetErr = err
			return
		}
		params, err := g.Parameters(ctx)
		if err != nil {
			g.targetTaskSetErr = err
			return
		}
		gc, err := g.GraphConfig(ctx)
		if err != nil {
			g.targetTaskSetErr = err
			return
		}

		// The chain starts with target_tasks_method; a "target_tasks_method"
		// entry in filters names that step, which has already run.
		filters := []string{params.String("target_tasks_method")}
		for _, name := range params.StringList("filters") {
			if name != "target_tasks_method" {
				filters = append(filters, name)
			}
		}

		current := full
		for _, name := range filters {
			labels, ok := targettasks.Apply(name, current, params, gc)
			if !ok {
				g.targetTaskSetErr = fmt.Errorf("target task filter %q is not registered", name)
				return
			}
			next := make(map[string]*task.Task, len(labels))
			for _, l := range labels {
				next[l] = current[l]
			}
			current = next
		}
		g.targetTaskSet = current
		g.targetTaskSetErr = g.verify(ctx, "target_task_set")
	})
	return g.targetTaskSet, g.targetTaskSetErr
}

// TargetTaskGraph is the target task set plus the transitive closure of its
// dependencies, with always_target-attributed tasks folded in first.
func (g *Generator) TargetTaskGraph(ctx context.Context) (*graph.Graph, map[string]*task.Task, error) {
	g.targetTaskGraphOnce.Do(func() {
		requested, err := g.requestedTaskLabels(ctx)
		if err != nil {
			g.targetTaskGraphErr = err
			return
		}
		fullGraph, err := g.FullTaskGraph(ctx)
		if err != nil {
			g.targetTaskGraphErr = err
			return
		}
		fullTasks, err := g.FullTaskSet(ctx)
		if err != nil {
			g.targetTaskGraphErr = err
			return
		}

		roots := map[graph.Label]struct{}{}
		for _, l := range requested {
			roots[graph.Label(l)] = struct{}{}
		}
		closure := fullGraph.TransitiveClosure(roots, false)

		tasks := make(map[string]*task.Task, len(closure.Nodes()))
		for _, n := range closure.Nodes() {
			tasks[string(n)] = fullTasks[string(n)]
		}
		g.targetTaskGraph = closure
		g.targetTaskSetForGraph = tasks
		g.targetTaskGraphErr = g.verify(ctx, "target_task_graph")
	})
	return g.targetTaskGraph, g.targetTaskSetForGraph, g.targetTaskGraphErr
}

// requestedTaskLabels unions the target task set with any always_target
// tasks enable_always_target permits.
func (g *Generator) requestedTaskLabels(ctx context.Context) ([]string, error) {
	targetSet, err := g.TargetTaskSet(ctx)
	if err != nil {
		return nil, err
	}
	full, err := g.FullTaskSet(ctx)
	if err != nil {
		return nil, err
	}
	params, err := g.Parameters(ctx)
	if err != nil {
		return nil, err
	}

	requested := map[string]bool{}
	for l := range targetSet {
		requested[l] = true
	}

	enable, _ := params.Get("enable_always_target")
	if truthy(enable) {
		for label, t := range full {
			if !t.HasAttribute("always_target") {
				continue
			}
			if alwaysTargetEnabled(enable, t.Kind) {
				requested[label] = true
			}
		}
	}

	out := make([]string, 0, len(requested))
	for l := range requested {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

func truthy(v value.Value) bool {
	if b, ok := v.AsBool(); ok {
		return b
	}
	if list, ok := v.AsList(); ok {
		return len(list) > 0
	}
	return !v.IsNull()
}

func alwaysTargetEnabled(v value.Value, taskKind string) bool {
	if b, ok := v.AsBool(); ok {
		return b
	}
	if list, ok := v.AsList(); ok {
		for _, e := range list {
			if s, ok := e.AsString(); ok && s == taskKind {
				return true
			}
		}
	}
	return false
}

// OptimizedTaskGraph runs the optimizer over TargetTaskGraph, then assigns
// a fresh task-id to every surviving task (the optimizer only knows about
// replacement ids), and sets each survivor's taskGroupId to the decision
// task's own id.
func (g *Generator) OptimizedTaskGraph(ctx context.Context) (*graph.Graph, map[string]*task.Task, error) {
	g.optimizedOnce.Do(func() {
		targetGraph, _, err := g.TargetTaskGraph(ctx)
		if err != nil {
			g.optimizedErr = err
			return
		}
		fullTasks, err := g.FullTaskSet(ctx)
		if err != nil {
			g.optimizedErr = err
			return
		}
		params, err := g.Parameters(ctx)
		if err != nil {
			g.optimizedErr = err
			return
		}
		requested, err := g.requestedTaskLabels(ctx)
		if err != nil {
			g.optimizedErr = err
			return
		}

		graphTasks := map[graph.Label]*task.Task{}
		for _, n := range targetGraph.Nodes() {
			graphTasks[n] = fullTasks[string(n)]
		}
		targetSet := map[graph.Label]bool{}
		for _, l := range requested {
			targetSet[graph.Label(l)] = true
		}

		survGraph, survTasks, log, err := optimize.Run(ctx, targetGraph, graphTasks, targetSet, params, g.Platform)
		if err != nil {
			g.optimizedErr = err
			return
		}

		labelToTaskID := map[string]string{}
		tasks := map[string]*task.Task{}
		for _, n := range survGraph.Nodes() {
			label := string(n)
			t := survTasks[n]
			id := uuid.NewString()
			labelToTaskID[label] = id
			t.Definition().SetTaskGroupID(g.DecisionTaskID)
			tasks[label] = t
		}
		// Replaced tasks resolved to an existing task-id never appear in
		// survGraph; their ids still belong in label_to_taskid so morph's
		// dependency rewriting (and callers diffing two runs) can see them.
		for _, entry := range log {
			if entry.Decision == optimize.DecisionReplaced && entry.ReplacementTaskID != "" {
				labelToTaskID[entry.Label] = entry.ReplacementTaskID
			}
		}

		g.optimizedGraph = survGraph
		g.optimizedTasks = tasks
		g.labelToTaskID = labelToTaskID
		g.optimizationLog = log
		g.optimizedErr = g.verify(ctx, "optimized_task_graph")
	})
	return g.optimizedGraph, g.optimizedTasks, g.optimizedErr
}

// LabelToTaskID forces OptimizedTaskGraph and returns its label->task-id
// mapping.
func (g *Generator) LabelToTaskID(ctx context.Context) (map[string]string, error) {
	if _, _, err := g.OptimizedTaskGraph(ctx); err != nil {
		return nil, err
	}
	return g.labelToTaskID, nil
}

// OptimizationLog forces OptimizedTaskGraph and returns the structured
// decision log, supplementing the distilled spec with the original's
// optimization-log artifact.
func (g *Generator) OptimizationLog(ctx context.Context) (optimize.Log, error) {
	if _, _, err := g.OptimizedTaskGraph(ctx); err != nil {
		return nil, err
	}
	return g.optimizationLog, nil
}

// MorphedTaskGraph runs the registered morphs over OptimizedTaskGraph.
func (g *Generator) MorphedTaskGraph(ctx context.Context) (*graph.Graph, map[string]*task.Task, error) {
	g.morphedOnce.Do(func() {
		optGraph, optTasks, err := g.OptimizedTaskGraph(ctx)
		if err != nil {
			g.morphedErr = err
			return
		}
		labelToTaskID, err := g.LabelToTaskID(ctx)
		if err != nil {
			g.morphedErr = err
			return
		}
		params, err := g.Parameters(ctx)
		if err != nil {
			g.morphedErr = err
			return
		}
		gc, err := g.GraphConfig(ctx)
		if err != nil {
			g.morphedErr = err
			return
		}

		graphTasks := map[graph.Label]*task.Task{}
		for l, t := range optTasks {
			graphTasks[graph.Label(l)] = t
		}
		idMap := map[graph.Label]string{}
		for l, id := range labelToTaskID {
			idMap[graph.Label(l)] = id
		}

		newGraph, newTasks, newIDs, err := morph.Run(ctx, optGraph, graphTasks, idMap, params, gc)
		if err != nil {
			g.morphedErr = err
			return
		}

		tasks := map[string]*task.Task{}
		for l, t := range newTasks {
			tasks[string(l)] = t
		}
		ids := map[string]string{}
		for l, id := range newIDs {
			ids[string(l)] = id
		}
		g.morphedGraph = newGraph
		g.morphedTasks = tasks
		g.labelToTaskID = ids
		g.morphedErr = g.verify(ctx, "morphed_task_graph")
	})
	return g.morphedGraph, g.morphedTasks, g.morphedErr
}
