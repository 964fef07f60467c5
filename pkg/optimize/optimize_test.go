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

package optimize_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/optimize"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func testParams(t *testing.T, overrides map[string]value.Value) *parameters.Parameters {
	t.Helper()
	values := map[string]value.Value{
		"base_repository":       value.String("https://example.invalid/repo"),
		"base_rev":              value.String("a"),
		"base_ref":              value.String("main"),
		"head_repository":       value.String("https://example.invalid/repo"),
		"head_rev":              value.String("b"),
		"head_ref":              value.String("topic"),
		"owner":                 value.String("me@example.invalid"),
		"project":               value.String("myproject"),
		"level":                 value.String("3"),
		"repository_type":       value.String("git"),
		"tasks_for":             value.String("github-push"),
		"target_tasks_method":   value.String("default"),
		"filters":               value.List(nil),
		"optimize_target_tasks": value.Bool(true),
		"do_not_optimize":       value.List(nil),
		"existing_tasks":        value.Map(nil),
		"enable_always_target":  value.Bool(false),
		"files_changed":         value.List(nil),
		"build_date":            value.Int(1700000000),
		"build_number":          value.Int(1),
		"pushlog_id":            value.String("1"),
		"pushdate":              value.Int(1700000000),
	}
	for k, v := range overrides {
		values[k] = v
	}
	p, err := parameters.New(values)
	require.NoError(t, err)
	return p
}

type fakePlatform struct {
	indexed  map[string]string
	statuses map[string]optimize.TaskStatus
}

func (f *fakePlatform) FindTaskByIndex(ctx context.Context, indexPath string) (string, bool, error) {
	id, ok := f.indexed[indexPath]
	return id, ok, nil
}

func (f *fakePlatform) GetTaskStatuses(ctx context.Context, taskIDs []string) (map[string]optimize.TaskStatus, error) {
	out := map[string]optimize.TaskStatus{}
	for _, id := range taskIDs {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// TestIndexSearchReplacesCachedTask mirrors scenario S2: hello-a has an
// index-search optimization spec, the fake platform resolves it to
// TASKID-A with a far-future expiration, so hello-a is replaced and
// hello-b's dependency is rewritten to point at the replacement.
func TestIndexSearchReplacesCachedTask(t *testing.T) {
	tasks := map[graph.Label]*task.Task{
		"hello-a": {
			Kind: "hello", Label: "hello-a",
			Optimization: task.OptimizationSpec{
				"index-search": value.List([]value.Value{value.String("foo.bar.baz")}),
			},
			TaskDefinition: map[string]any{"deadline": "1 day"},
		},
		"hello-b": {
			Kind: "hello", Label: "hello-b",
			Dependencies:   map[string]string{"edge1": "hello-a"},
			TaskDefinition: map[string]any{"deadline": "1 day"},
		},
	}
	g := graph.New([]graph.Label{"hello-a", "hello-b"}, []graph.Edge{{From: "hello-b", To: "hello-a", Name: "edge1"}})

	platform := &fakePlatform{
		indexed: map[string]string{"foo.bar.baz": "TASKID-A"},
		statuses: map[string]optimize.TaskStatus{
			"TASKID-A": {State: "completed", Expires: time.Now().Add(365 * 24 * time.Hour)},
		},
	}

	optimized, survivors, log, err := optimize.Run(context.Background(), g, tasks, map[graph.Label]bool{"hello-b": true}, testParams(t, nil), platform)
	require.NoError(t, err)

	assert.ElementsMatch(t, []graph.Label{"hello-b"}, optimized.Nodes())
	require.Contains(t, survivors, graph.Label("hello-b"))
	assert.Equal(t, "TASKID-A", survivors["hello-b"].Dependencies["edge1"])
	assert.Equal(t, 1, log.CountReplaced())
}

// TestIndexSearchReplacementMustOutlastTheLatestDependentDeadline mirrors
// scenario S2 but with two dependents on different deadlines. The
// replacement's expiration sits strictly between the two: it must survive
// past hello-c's deadline for hello-a to be replaced, not just past
// hello-b's earlier one.
func TestIndexSearchReplacementMustOutlastTheLatestDependentDeadline(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	tasks := map[graph.Label]*task.Task{
		"hello-a": {
			Kind: "hello", Label: "hello-a",
			Optimization: task.OptimizationSpec{
				"index-search": value.List([]value.Value{value.String("foo.bar.baz")}),
			},
		},
		"hello-b": {
			Kind: "hello", Label: "hello-b",
			Dependencies:   map[string]string{"edge1": "hello-a"},
			TaskDefinition: map[string]any{"deadline": "1 day"},
		},
		"hello-c": {
			Kind: "hello", Label: "hello-c",
			Dependencies:   map[string]string{"edge1": "hello-a"},
			TaskDefinition: map[string]any{"deadline": "3 days"},
		},
	}
	g := graph.New([]graph.Label{"hello-a", "hello-b", "hello-c"}, []graph.Edge{
		{From: "hello-b", To: "hello-a", Name: "edge1"},
		{From: "hello-c", To: "hello-a", Name: "edge1"},
	})

	platform := &fakePlatform{
		indexed: map[string]string{"foo.bar.baz": "TASKID-A"},
		statuses: map[string]optimize.TaskStatus{
			"TASKID-A": {State: "completed", Expires: base.Add(2 * 24 * time.Hour)},
		},
	}

	optimized, survivors, log, err := optimize.Run(context.Background(), g, tasks, map[graph.Label]bool{"hello-b": true, "hello-c": true}, testParams(t, nil), platform)
	require.NoError(t, err)

	assert.ElementsMatch(t, []graph.Label{"hello-a", "hello-b", "hello-c"}, optimized.Nodes())
	require.Contains(t, survivors, graph.Label("hello-a"))
	assert.Equal(t, 0, log.CountReplaced())
}

// TestSkipUnlessChangedRemovesUnaffectedTask mirrors scenario S4.
func TestSkipUnlessChangedRemovesUnaffectedTask(t *testing.T) {
	tasks := map[graph.Label]*task.Task{
		"docs-build": {
			Kind: "docs", Label: "docs-build",
			Optimization: task.OptimizationSpec{
				"skip-unless-changed": value.List([]value.Value{value.String("src/**")}),
			},
		},
		"docs-lint": {
			Kind: "docs", Label: "docs-lint",
			Optimization: task.OptimizationSpec{
				"skip-unless-changed": value.List([]value.Value{value.String("docs/**")}),
			},
		},
	}
	g := graph.New([]graph.Label{"docs-build", "docs-lint"}, nil)

	params := testParams(t, map[string]value.Value{
		"files_changed": value.List([]value.Value{value.String("docs/index.md")}),
	})

	optimized, survivors, log, err := optimize.Run(context.Background(), g, tasks, nil, params, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []graph.Label{"docs-lint"}, optimized.Nodes())
	assert.NotContains(t, survivors, graph.Label("docs-build"))
	assert.Contains(t, survivors, graph.Label("docs-lint"))
	assert.Equal(t, 1, log.CountRemoved())
}

func TestDoNotOptimizeIsAlwaysKept(t *testing.T) {
	tasks := map[graph.Label]*task.Task{
		"docs-build": {
			Kind: "docs", Label: "docs-build",
			Optimization: task.OptimizationSpec{
				"skip-unless-changed": value.List([]value.Value{value.String("src/**")}),
			},
		},
	}
	g := graph.New([]graph.Label{"docs-build"}, nil)
	params := testParams(t, map[string]value.Value{
		"do_not_optimize": value.List([]value.Value{value.String("docs-build")}),
	})

	optimized, _, _, err := optimize.Run(context.Background(), g, tasks, nil, params, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []graph.Label{"docs-build"}, optimized.Nodes())
}

func TestExistingTasksSeedReplacement(t *testing.T) {
	tasks := map[graph.Label]*task.Task{
		"hello-a": {Kind: "hello", Label: "hello-a"},
	}
	g := graph.New([]graph.Label{"hello-a"}, nil)
	params := testParams(t, map[string]value.Value{
		"existing_tasks": value.Map(map[string]value.Value{"hello-a": value.String("EXISTING-ID")}),
	})

	optimized, survivors, log, err := optimize.Run(context.Background(), g, tasks, nil, params, nil)
	require.NoError(t, err)
	assert.Empty(t, optimized.Nodes())
	assert.NotContains(t, survivors, graph.Label("hello-a"))
	assert.Equal(t, 1, log.CountReplaced())
}

func TestIfDependenciesFixpointRemovesOrphan(t *testing.T) {
	tasks := map[graph.Label]*task.Task{
		"build-a": {
			Kind: "build", Label: "build-a",
			Optimization: task.OptimizationSpec{
				"skip-unless-changed": value.List([]value.Value{value.String("src/**")}),
			},
		},
		"signing-a": {
			Kind: "signing", Label: "signing-a",
			Dependencies:   map[string]string{"build": "build-a"},
			IfDependencies: []string{"build"},
		},
	}
	g := graph.New([]graph.Label{"build-a", "signing-a"}, []graph.Edge{{From: "signing-a", To: "build-a", Name: "build"}})
	params := testParams(t, nil)

	optimized, _, _, err := optimize.Run(context.Background(), g, tasks, nil, params, nil)
	require.NoError(t, err)
	assert.Empty(t, optimized.Nodes())
}
