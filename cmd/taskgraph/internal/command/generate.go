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

package command

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/pkg/generator"
	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/multigen"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/platform"
	"github.com/taskcluster/taskgraph/pkg/platform/fake"
	"github.com/taskcluster/taskgraph/pkg/platform/http"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
	"github.com/taskcluster/taskgraph/pkg/vcs"
)

// usageError marks a failure as CLI misuse rather than a generation
// failure, so Execute can map it to exit code 2 instead of 1.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// generationError marks a failure as a genuine pipeline failure (a bad
// kind file, a missing dependency, an optimizer error) rather than CLI
// misuse, so Execute maps it to exit code 1. Everything Execute sees that
// isn't a generationError or usageError — including Cobra's own
// flag/argument parsing errors — is treated as usage and exits 2.
type generationError struct{ err error }

func (e *generationError) Error() string { return e.err.Error() }
func (e *generationError) Unwrap() error { return e.err }

// phaseFunc is a Generator method, one per CLI subcommand, returning the
// phase's graph alongside its task set; only target, whose task set has no
// graph of its own, returns a nil graph.
type phaseFunc func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error)

func newPlatformClient(opts *globalOptions) platform.Client {
	if opts.platformURL != "" {
		return http.New(opts.platformURL)
	}
	return fake.New()
}

// resolveParametersSources turns --parameters into one ParametersFunc per
// set, or a single Defaults-backed set when none was given.
func resolveParametersSources(opts *globalOptions, client platform.Client) []multigen.Set {
	overrides := targetKindOverrides(opts.targetKinds)

	if len(opts.parameters) == 0 {
		v := vcs.New(opts.root)
		return []multigen.Set{{
			Label: "default",
			Parameters: func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
				p, err := parameters.Defaults(context.Background(), v, "git", opts.root)
				if err != nil || len(overrides) == 0 {
					return p, err
				}
				return applyOverrides(p, overrides)
			},
		}}
	}

	sets := make([]multigen.Set, len(opts.parameters))
	for i, spec := range opts.parameters {
		spec := spec
		src := parameters.ParseSource(spec)
		sets[i] = multigen.Set{
			Label: spec,
			Parameters: func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
				return parameters.Load(context.Background(), src, overrides, opts.trustDomain, client)
			},
		}
	}
	return sets
}

// applyOverrides re-validates p with overrides merged in, for the
// Defaults() path where overrides can't be threaded through the
// constructor directly.
func applyOverrides(p *parameters.Parameters, overrides map[string]value.Value) (*parameters.Parameters, error) {
	values := p.All()
	for k, v := range overrides {
		values[k] = v
	}
	return parameters.New(values)
}

// targetKindOverrides injects --target-kind as the "target-kinds"
// parameter Generator.targetKinds reads, since Generator has no dedicated
// field for it.
func targetKindOverrides(targetKinds []string) map[string]value.Value {
	if len(targetKinds) == 0 {
		return nil
	}
	list := make([]value.Value, len(targetKinds))
	for i, k := range targetKinds {
		list[i] = value.String(k)
	}
	return map[string]value.Value{"target-kinds": value.List(list)}
}

// runGeneration resolves parameters (one set, or several via --parameters
// repeated), runs phase over each with pkg/multigen, and returns the
// filtered results keyed by set label.
func runGeneration(ctx context.Context, opts *globalOptions, phase phaseFunc) ([]multigen.Result, error) {
	client := newPlatformClient(opts)
	sets := resolveParametersSources(opts, client)

	newGenerator := func(root string, p generator.ParametersFunc) *generator.Generator {
		gen := generator.New(root, p, opts.decisionTaskID, client)
		gen.EnableVerifications = !opts.noVerify
		return gen
	}
	newLogger := func(w io.Writer) *slog.Logger {
		return view.NewLogger(opts.logFormat, w, opts.logLevel)
	}

	results, err := multigen.RunPhase(ctx, opts.root, sets, newGenerator, phase, newLogger, opts.maxConcurrent)
	for i := range results {
		results[i].Tasks = filterTasks(results[i].Tasks, opts)
	}
	return results, err
}

// filterTasks applies --tasks (a label regex) post-filter; no Generator-
// level equivalent exists, so the CLI applies it after the phase runs.
func filterTasks(tasks map[string]*task.Task, opts *globalOptions) map[string]*task.Task {
	if opts.tasksRe == nil {
		return tasks
	}
	out := make(map[string]*task.Task, len(tasks))
	for label, t := range tasks {
		if opts.tasksRe.MatchString(label) {
			out[label] = t
		}
	}
	return out
}

// renderTasks converts a phase's task set into its JSON-serializable form,
// a map keyed by label with the full task record, applying --exclude-key's
// dotted paths to each record.
func renderTasks(tasks map[string]*task.Task, excludeKeys []string) map[string]any {
	out := make(map[string]any, len(tasks))
	for label, t := range tasks {
		rec := map[string]any{
			"kind":         t.Kind,
			"label":        t.Label,
			"attributes":   valueMapToAny(t.Attributes),
			"dependencies": t.Dependencies,
			"optimization": valueMapToAny(map[string]value.Value(t.Optimization)),
			"task":         t.TaskDefinition,
			"description":  t.Description,
		}
		if len(t.SoftDependencies) > 0 {
			rec["soft_dependencies"] = t.SoftDependencies
		}
		if len(t.IfDependencies) > 0 {
			rec["if_dependencies"] = t.IfDependencies
		}
		for _, path := range excludeKeys {
			if path == "" {
				continue
			}
			deleteDottedKey(rec, strings.Split(path, "."))
		}
		out[label] = rec
	}
	return out
}

func valueMapToAny(m map[string]value.Value) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = value.ToAny(v)
	}
	return out
}

// deleteDottedKey removes the value at the dotted path given by parts from
// m, no-op if any intermediate segment is absent or not a map.
func deleteDottedKey(m map[string]any, parts []string) {
	if len(parts) == 0 {
		return
	}
	if len(parts) == 1 {
		delete(m, parts[0])
		return
	}
	next, ok := m[parts[0]].(map[string]any)
	if !ok {
		return
	}
	deleteDottedKey(next, parts[1:])
}

func sortedLabels(tasks map[string]*task.Task) []string {
	labels := make([]string, 0, len(tasks))
	for l := range tasks {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
