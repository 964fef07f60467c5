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

package builtin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/transform/builtin"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func testGraphConfig(t *testing.T) *graphconfig.GraphConfig {
	t.Helper()
	gc, err := graphconfig.New(map[string]any{
		"trust-domain": "demo",
		"task-priority": "low",
		"workers": map[string]any{
			"aliases": map[string]any{
				"b-linux": map[string]any{
					"provisioner":    "demo-1",
					"implementation": "docker-worker",
					"os":             "linux",
					"worker-type":    "b-linux",
				},
			},
		},
		"taskgraph": map[string]any{
			"repositories": map[string]any{
				"demo": map[string]any{"name": "Demo"},
			},
			"cached-task-prefix": "demo",
		},
	}, "/tmp/demo")
	require.NoError(t, err)
	return gc
}

func testParameters(t *testing.T) *parameters.Parameters {
	t.Helper()
	p, err := parameters.New(map[string]value.Value{
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
		"pushlog_id":            value.String("1"),
		"pushdate":              value.Int(1700000000),
	})
	require.NoError(t, err)
	return p
}

func runOne(t *testing.T, fn transform.Func, cfg *transform.Config, in transform.Stub) []transform.Stub {
	t.Helper()
	out := make(chan transform.Stub, 16)
	err := fn(context.Background(), cfg, in, out)
	require.NoError(t, err)
	close(out)
	var results []transform.Stub
	for s := range out {
		results = append(results, s)
	}
	return results
}

func TestTaskContextSubstitutesFromParameters(t *testing.T) {
	cfg := &transform.Config{Kind: "demo", Parameters: testParameters(t)}
	in := value.Map(map[string]value.Value{
		"label":       value.String("greet"),
		"description": value.String("hello {{owner}}"),
		"task-context": value.Map(map[string]value.Value{
			"from-parameters": value.Map(map[string]value.Value{
				"owner": value.String("owner"),
			}),
			"substitution-fields": value.List([]value.Value{value.String("description")}),
		}),
	})

	out := runOne(t, builtin.TaskContext, cfg, in)
	require.Len(t, out, 1)
	desc, _ := out[0].Get("description")
	s, _ := desc.AsString()
	assert.Equal(t, "hello me@example.invalid", s)
	_, hasTC := out[0].Get("task-context")
	assert.False(t, hasTC)
}

func TestChunkingDuplicatesAndSubstitutes(t *testing.T) {
	cfg := &transform.Config{Kind: "demo"}
	in := value.Map(map[string]value.Value{
		"label":       value.String("test"),
		"description": value.String("chunk {{this_chunk}} of {{total_chunks}}"),
		"chunk": value.Map(map[string]value.Value{
			"total-chunks":         value.Int(3),
			"substitution-fields":  value.List([]value.Value{value.String("description")}),
		}),
	})

	out := runOne(t, builtin.Chunking, cfg, in)
	require.Len(t, out, 3)
	desc0, _ := out[0].Get("description")
	s0, _ := desc0.AsString()
	assert.Equal(t, "chunk 1 of 3", s0)
	desc2, _ := out[2].Get("description")
	s2, _ := desc2.AsString()
	assert.Equal(t, "chunk 3 of 3", s2)
}

func TestMatrixCartesianProductWithExclude(t *testing.T) {
	cfg := &transform.Config{Kind: "demo"}
	in := value.Map(map[string]value.Value{
		"label": value.String("test"),
		"matrix": value.Map(map[string]value.Value{
			"setup": value.Map(map[string]value.Value{
				"os":  value.List([]value.Value{value.String("linux"), value.String("windows")}),
				"py":  value.List([]value.Value{value.String("3.11"), value.String("3.12")}),
			}),
			"exclude": value.List([]value.Value{
				value.Map(map[string]value.Value{"os": value.String("windows"), "py": value.String("3.11")}),
			}),
		}),
	})

	out := runOne(t, builtin.Matrix, cfg, in)
	require.Len(t, out, 3)
	var labels []string
	for _, s := range out {
		l, _ := s.Get("label")
		ls, _ := l.AsString()
		labels = append(labels, ls)
	}
	assert.ElementsMatch(t, []string{"test-linux-3.11", "test-linux-3.12", "test-windows-3.12"}, labels)
}

func TestFromDepsGroupsSingleAndSetsPrimaryKind(t *testing.T) {
	cfg := &transform.Config{
		Kind: "signing",
		KindConfig: value.Map(map[string]value.Value{
			"kind-dependencies": value.List([]value.Value{value.String("build")}),
		}),
		KindDependenciesTasks: map[string]*task.Task{
			"build-debug": {Kind: "build", Label: "build-debug"},
			"build-opt":   {Kind: "build", Label: "build-opt"},
		},
	}
	in := value.Map(map[string]value.Value{
		"label":    value.String("signing"),
		"from-deps": value.Map(map[string]value.Value{"group-by": value.String("single")}),
	})

	out := runOne(t, builtin.FromDeps, cfg, in)
	require.Len(t, out, 2)
	var names []string
	for _, s := range out {
		n, _ := s.Get("name")
		ns, _ := n.AsString()
		names = append(names, ns)
	}
	assert.ElementsMatch(t, []string{"debug", "opt"}, names)
}

func TestNotifyBuildsRoutes(t *testing.T) {
	cfg := &transform.Config{Kind: "demo", Parameters: testParameters(t)}
	in := value.Map(map[string]value.Value{
		"label": value.String("demo-task"),
		"task":  value.Map(map[string]value.Value{}),
		"notify": value.Map(map[string]value.Value{
			"recipients": value.List([]value.Value{
				value.Map(map[string]value.Value{
					"type":    value.String("email"),
					"address": value.String("team@example.invalid"),
				}),
			}),
		}),
	})

	out := runOne(t, builtin.Notify, cfg, in)
	require.Len(t, out, 1)
	taskVal, _ := out[0].Get("task")
	routesVal, _ := taskVal.Get("routes")
	routes, _ := routesVal.AsList()
	require.Len(t, routes, 1)
	r, _ := routes[0].AsString()
	assert.Equal(t, "notify.email.team@example.invalid.on-completed", r)
}

func TestRunUsingRunTaskWrapsCommand(t *testing.T) {
	cfg := &transform.Config{Kind: "demo"}
	in := value.Map(map[string]value.Value{
		"label": value.String("demo"),
		"run": value.Map(map[string]value.Value{
			"using":   value.String("run-task"),
			"command": value.String("make check"),
		}),
	})

	out := runOne(t, builtin.Run, cfg, in)
	require.Len(t, out, 1)
	_, hasRun := out[0].Get("run")
	assert.False(t, hasRun)
	worker, _ := out[0].Get("worker")
	cmdVal, _ := worker.Get("command")
	cmd, _ := cmdVal.AsList()
	require.Len(t, cmd, 5)
	first, _ := cmd[0].AsString()
	assert.Equal(t, "run-task", first)
}

func TestTaskTransformBuildsWireFormat(t *testing.T) {
	cfg := &transform.Config{Kind: "build", Parameters: testParameters(t), GraphConfig: testGraphConfig(t)}
	in := value.Map(map[string]value.Value{
		"label":       value.String("build-debug"),
		"description": value.String("a debug build"),
		"worker-type": value.String("b-linux"),
	})

	out := runOne(t, builtin.Task, cfg, in)
	require.Len(t, out, 1)
	taskDefVal, _ := out[0].Get("task")
	taskDef, _ := taskDefVal.AsMap()
	provisioner, _ := taskDef["provisionerId"].AsString()
	assert.Equal(t, "demo-1", provisioner)
	workerType, _ := taskDef["workerType"].AsString()
	assert.Equal(t, "b-linux", workerType)
	expires, _ := taskDef["expires"].AsString()
	assert.Equal(t, "1 year", expires)
}

func TestTaskTransformUsesTryExpiry(t *testing.T) {
	p, err := parameters.New(map[string]value.Value{
		"base_repository":       value.String("https://example.invalid/repo"),
		"base_rev":              value.String("a"),
		"base_ref":              value.String("main"),
		"head_repository":       value.String("https://example.invalid/repo"),
		"head_rev":              value.String("b"),
		"head_ref":              value.String("topic"),
		"owner":                 value.String("me@example.invalid"),
		"project":               value.String("try"),
		"level":                 value.String("1"),
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
		"pushlog_id":            value.String("1"),
		"pushdate":              value.Int(1700000000),
	})
	require.NoError(t, err)

	cfg := &transform.Config{Kind: "build", Parameters: p, GraphConfig: testGraphConfig(t)}
	in := value.Map(map[string]value.Value{
		"label":       value.String("build-debug"),
		"worker-type": value.String("b-linux"),
	})
	out := runOne(t, builtin.Task, cfg, in)
	require.Len(t, out, 1)
	taskDefVal, _ := out[0].Get("task")
	taskDef, _ := taskDefVal.AsMap()
	expires, _ := taskDef["expires"].AsString()
	assert.Equal(t, "28 days", expires)
}

func TestCachedTasksAddsOptimizationAndDigest(t *testing.T) {
	cfg := &transform.Config{Kind: "toolchain", Parameters: testParameters(t), GraphConfig: testGraphConfig(t)}
	stub := value.Map(map[string]value.Value{
		"label": value.String("toolchain-clang"),
		"cache": value.Map(map[string]value.Value{
			"type":        value.String("toolchains.v3"),
			"name":        value.String("clang"),
			"digest-data": value.List([]value.Value{value.String("clang-src-hash")}),
		}),
	})

	out, err := builtin.CachedTasks(context.Background(), cfg, []transform.Stub{stub})
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, hasCache := out[0].Get("cache")
	assert.False(t, hasCache)

	attrs, _ := out[0].Get("attributes")
	cachedTask, ok := attrs.Get("cached_task")
	require.True(t, ok)
	typ, _ := cachedTask.Get("type")
	ts, _ := typ.AsString()
	assert.Equal(t, "toolchains.v3", ts)

	opt, _ := out[0].Get("optimization")
	idxVal, ok := opt.Get("index-search")
	require.True(t, ok)
	idx, _ := idxVal.AsList()
	assert.NotEmpty(t, idx)
}
