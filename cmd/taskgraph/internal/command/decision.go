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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/pkg/generator"
)

func newDecisionCommand(stream *view.Stream) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:          "decision",
		Short:        "run the full pipeline through morphing and persist the decision task's artifacts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseGlobalOptions(cmd)
			if err != nil {
				return &usageError{err}
			}
			return runDecision(cmd.Context(), stream, opts, outputDir)
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory to write label-to-taskid.json, task-graph.json, and to-run.json into")
	return cmd
}

// runDecision runs the pipeline through morphing, then persists the three
// artifacts a decision task publishes. Each
// parameters set gets a Generator of its own so its memoized phases (the
// morphed graph, the label->task-id map, and the target task set) are all
// read from a single consistent run; one subdirectory per set when more
// than one was given.
func runDecision(ctx context.Context, stream *view.Stream, opts *globalOptions, outputDir string) error {
	client := newPlatformClient(opts)
	sets := resolveParametersSources(opts, client)

	var g errgroup.Group
	if opts.maxConcurrent > 0 {
		g.SetLimit(opts.maxConcurrent)
	}

	for _, set := range sets {
		set := set
		g.Go(func() error {
			gen := generator.New(opts.root, set.Parameters, opts.decisionTaskID, client)
			gen.EnableVerifications = !opts.noVerify

			_, morphedTasks, err := gen.MorphedTaskGraph(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", set.Label, err)
			}
			morphedTasks = filterTasks(morphedTasks, opts)

			labelToTaskID, err := gen.LabelToTaskID(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", set.Label, err)
			}
			targetTasks, err := gen.TargetTaskSet(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", set.Label, err)
			}
			toRun := sortedLabels(targetTasks)

			dir := outputDir
			if len(sets) > 1 {
				dir = filepath.Join(outputDir, sanitizeLabel(set.Label))
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			if err := writeJSONFile(filepath.Join(dir, "task-graph.json"), renderTasks(morphedTasks, opts.excludeKeys)); err != nil {
				return err
			}
			if err := writeJSONFile(filepath.Join(dir, "label-to-taskid.json"), labelToTaskID); err != nil {
				return err
			}
			if err := writeJSONFile(filepath.Join(dir, "to-run.json"), toRun); err != nil {
				return err
			}
			stream.Printf("wrote decision artifacts for %s to %s\n", set.Label, dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &generationError{err}
	}
	return nil
}

func sanitizeLabel(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
