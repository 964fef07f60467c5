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

package multigen_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/generator"
	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/multigen"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yml"), []byte(`
trust-domain: demo
task-priority: low
workers:
  aliases: {}
taskgraph:
  repositories:
    demo:
      name: Demo
`), 0o644))
	dir := filepath.Join(root, "kinds", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kind.yml"), []byte(`
transforms:
  - task
tasks:
  hello:
    description: says hello
    worker-type: literal-provisioner/literal-worker
`), 0o644))
	return root
}

func paramsFor(project string) generator.ParametersFunc {
	return func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
		return parameters.New(map[string]value.Value{
			"base_repository":       value.String("https://example.invalid/repo"),
			"base_rev":              value.String("a"),
			"base_ref":              value.String("main"),
			"head_repository":       value.String("https://example.invalid/repo"),
			"head_rev":              value.String("b"),
			"head_ref":              value.String("topic"),
			"owner":                 value.String("me@example.invalid"),
			"project":               value.String(project),
			"level":                 value.String("3"),
			"repository_type":       value.String("git"),
			"tasks_for":             value.String("github-push"),
			"target_tasks_method":   value.String("all"),
			"filters":               value.List([]value.Value{value.String("all")}),
			"optimize_target_tasks": value.Bool(true),
			"do_not_optimize":       value.List(nil),
			"existing_tasks":        value.Map(nil),
			"enable_always_target":  value.Bool(false),
			"files_changed":         value.List(nil),
			"build_date":            value.Int(1700000000),
			"pushlog_id":            value.String("1"),
			"pushdate":              value.Int(1700000000),
		})
	}
}

func TestRunGeneratesEverySetConcurrently(t *testing.T) {
	root := writeFixture(t)
	sets := []multigen.Set{
		{Label: "demo-a", Parameters: paramsFor("demo-a")},
		{Label: "demo-b", Parameters: paramsFor("demo-b")},
		{Label: "demo-c", Parameters: paramsFor("demo-c")},
	}

	results, err := multigen.Run(context.Background(), root, sets, func(root string, p generator.ParametersFunc) *generator.Generator {
		return generator.New(root, p, "DECISION-TASK-ID", nil)
	}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, want := range sets {
		assert.Equal(t, want.Label, results[i].Label)
		require.NoError(t, results[i].Err)
		assert.Len(t, results[i].Tasks, 1)
	}
}

func TestRunReportsPerSetFailureWithoutCancelingSiblings(t *testing.T) {
	root := writeFixture(t)
	sets := []multigen.Set{
		{Label: "good", Parameters: paramsFor("good")},
		{Label: "bad", Parameters: func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
			return nil, fmt.Errorf("intentionally broken parameters")
		}},
	}

	results, err := multigen.Run(context.Background(), root, sets, func(root string, p generator.ParametersFunc) *generator.Generator {
		return generator.New(root, p, "DECISION-TASK-ID", nil)
	}, 0)
	require.Error(t, err)
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Tasks, 1)

	require.Error(t, results[1].Err)
}

func TestRunPhaseUsesTheRequestedPhaseInsteadOfMorphed(t *testing.T) {
	root := writeFixture(t)
	sets := []multigen.Set{{Label: "demo-a", Parameters: paramsFor("demo-a")}}

	results, err := multigen.RunPhase(context.Background(), root, sets, func(root string, p generator.ParametersFunc) *generator.Generator {
		return generator.New(root, p, "DECISION-TASK-ID", nil)
	}, func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		tasks, err := gen.TargetTaskSet(ctx)
		return nil, tasks, err
	}, nil, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Graph)
	assert.Len(t, results[0].Tasks, 1)
}

func TestRunPhaseUsesTheProvidedLoggerFactory(t *testing.T) {
	root := writeFixture(t)
	sets := []multigen.Set{{Label: "demo-a", Parameters: paramsFor("demo-a")}}

	var built int32
	newLogger := func(w io.Writer) *slog.Logger {
		atomic.AddInt32(&built, 1)
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	results, err := multigen.RunPhase(context.Background(), root, sets, func(root string, p generator.ParametersFunc) *generator.Generator {
		return generator.New(root, p, "DECISION-TASK-ID", nil)
	}, func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		return gen.MorphedTaskGraph(ctx)
	}, newLogger, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&built))
	assert.Contains(t, results[0].Log, `"msg":"resolving parameters"`)
}
