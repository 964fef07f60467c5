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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/pkg/expr"
	"github.com/taskcluster/taskgraph/pkg/generator"
	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/optimize"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// phaseCommands maps each CLI subcommand name, one per Generator phase,
// to the Generator method it
// invokes. target-graph is distinct from target in that it additionally
// pulls in the transitive closure of target's dependencies.
var phaseCommands = []struct {
	use   string
	short string
	run   phaseFunc
}{
	{"full", "print the full task graph (every kind's every task)", func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		g, err := gen.FullTaskGraph(ctx)
		if err != nil {
			return nil, nil, err
		}
		tasks, err := gen.FullTaskSet(ctx)
		return g, tasks, err
	}},
	{"target", "print the target task set (target_tasks_method chained through filters)", func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		tasks, err := gen.TargetTaskSet(ctx)
		return nil, tasks, err
	}},
	{"target-graph", "print the target task set plus the transitive closure of its dependencies", func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		return gen.TargetTaskGraph(ctx)
	}},
	{"optimized", "print the optimized task graph, after replace/remove decisions", func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		return gen.OptimizedTaskGraph(ctx)
	}},
	{"morphed", "print the morphed task graph, the final pre-submission form", func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		return gen.MorphedTaskGraph(ctx)
	}},
}

func newPhaseCommand(stream *view.Stream, use, short string, run phaseFunc) *cobra.Command {
	return &cobra.Command{
		Use:          use,
		Short:        short,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseGlobalOptions(cmd)
			if err != nil {
				return &usageError{err}
			}
			if opts.diff != "" {
				return runDiff(cmd.Context(), stream, opts, opts.diff, run)
			}
			return runAndPrint(cmd.Context(), stream, opts, run)
		},
	}
}

// runAndPrint runs phase over every resolved parameters set and writes the
// result to stream: one JSON document per set with --json, or else just
// the sorted task labels.
func runAndPrint(ctx context.Context, stream *view.Stream, opts *globalOptions, phase phaseFunc) error {
	results, err := runGeneration(ctx, opts, phase)
	multi := len(results) > 1
	for _, res := range results {
		if multi {
			stream.Printf("=== %s ===\n", res.Label)
		}
		if res.Log != "" {
			stream.Printf("%s", res.Log)
		}
		if res.Err != nil {
			stream.Printf("error: %v\n", res.Err)
			continue
		}
		if opts.jsonOutput {
			rendered := renderTasks(res.Tasks, opts.excludeKeys)
			enc := json.NewEncoder(stream.Writer)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(rendered); encErr != nil {
				return &generationError{fmt.Errorf("encoding output: %w", encErr)}
			}
			continue
		}
		for _, label := range sortedLabels(res.Tasks) {
			stream.Printf("%s\n", label)
		}
	}
	if opts.metrics {
		if metricsErr := stream.PrintMetrics(optimize.Registry, expr.Registry); metricsErr != nil {
			return &generationError{metricsErr}
		}
	}
	if err != nil {
		return &generationError{err}
	}
	return nil
}
