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

package morph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/morph"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func testGraphConfig(t *testing.T) *graphconfig.GraphConfig {
	t.Helper()
	gc, err := graphconfig.New(map[string]any{
		"trust-domain":  "test",
		"task-priority": "low",
		"workers":       map[string]any{"aliases": map[string]any{}},
		"taskgraph":     map[string]any{"repositories": map[string]any{}},
	}, "/tmp/morph-test")
	require.NoError(t, err)
	return gc
}

func TestMakeIndexTaskCollapsesRoutesIntoHelper(t *testing.T) {
	origin := &task.Task{
		Kind:  "test",
		Label: "a",
		TaskDefinition: map[string]any{
			"routes":   []any{"index.gecko.v2.mozilla-central.*"},
			"deadline": "soon",
			"metadata": map[string]any{
				"description": "desc",
				"owner":       "owner@foo.com",
				"source":      "https://source",
			},
			"extra": map[string]any{
				"index": map[string]any{"rank": int64(1540722354)},
			},
		},
	}
	dockerTask := &task.Task{
		Kind:           "docker-image",
		Label:          "build-docker-image-index-task",
		TaskDefinition: map[string]any{},
	}

	tasks := map[graph.Label]*task.Task{
		"a":                              origin,
		"build-docker-image-index-task": dockerTask,
	}
	labelToTaskID := map[graph.Label]string{
		"a":                              "a-tid",
		"build-docker-image-index-task": "docker-tid",
	}
	g := graph.New([]graph.Label{"a", "build-docker-image-index-task"}, nil)

	_, outTasks, outLabelToTaskID, err := morph.Run(context.Background(), g, tasks, labelToTaskID, nil, testGraphConfig(t))
	require.NoError(t, err)

	indexTask, ok := outTasks["a-index"]
	require.True(t, ok, "expected a generated a-index task")
	require.NotEmpty(t, outLabelToTaskID["a-index"])

	payload, ok := indexTask.TaskDefinition["payload"].(map[string]any)
	require.True(t, ok)
	command, ok := payload["command"].([]any)
	require.True(t, ok)
	assert.Equal(t, "insert-indexes.js", command[0])

	env, ok := payload["env"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a-tid", env["TARGET_TASKID"])
	assert.Equal(t, int64(1540722354), env["INDEX_RANK"])

	scopes, ok := indexTask.TaskDefinition["scopes"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"index:insert-task:gecko.v2.mozilla-central.*"}, scopes)

	originRoutes, _ := origin.TaskDefinition["routes"].([]any)
	assert.Empty(t, originRoutes)
}

func TestApplyJSONeSubstitutesTaskReference(t *testing.T) {
	build := &task.Task{
		Kind:           "build",
		Label:          "build-linux",
		TaskDefinition: map[string]any{},
	}
	signing := &task.Task{
		Kind:  "signing",
		Label: "signing-linux",
		TaskDefinition: map[string]any{
			"payload": map[string]any{
				"upstreamTaskId": "${tasks['build-linux']}",
			},
		},
	}
	tasks := map[graph.Label]*task.Task{
		"build-linux":   build,
		"signing-linux": signing,
	}
	labelToTaskID := map[graph.Label]string{
		"build-linux":   "build-tid",
		"signing-linux": "signing-tid",
	}
	g := graph.New([]graph.Label{"build-linux", "signing-linux"}, nil)

	_, outTasks, _, err := morph.Run(context.Background(), g, tasks, labelToTaskID, nil, testGraphConfig(t))
	require.NoError(t, err)

	payload := outTasks["signing-linux"].TaskDefinition["payload"].(map[string]any)
	assert.Equal(t, "build-tid", payload["upstreamTaskId"])
}

func TestAddChainOfTrustInjectsFeatureAndInputs(t *testing.T) {
	build := &task.Task{
		Kind:           "build",
		Label:          "build-linux",
		TaskDefinition: map[string]any{},
	}
	signing := &task.Task{
		Kind:         "signing",
		Label:        "signing-linux",
		Attributes:   map[string]value.Value{"chain-of-trust": value.Bool(true)},
		Dependencies: map[string]string{"build": "build-linux"},
		TaskDefinition: map[string]any{
			"payload": map[string]any{},
		},
	}
	tasks := map[graph.Label]*task.Task{
		"build-linux":   build,
		"signing-linux": signing,
	}
	labelToTaskID := map[graph.Label]string{
		"build-linux":   "build-tid",
		"signing-linux": "signing-tid",
	}
	g := graph.New([]graph.Label{"build-linux", "signing-linux"}, []graph.Edge{
		{From: "signing-linux", To: "build-linux", Name: "build"},
	})

	_, outTasks, _, err := morph.Run(context.Background(), g, tasks, labelToTaskID, nil, testGraphConfig(t))
	require.NoError(t, err)

	def := outTasks["signing-linux"].TaskDefinition
	payload := def["payload"].(map[string]any)
	features := payload["features"].(map[string]any)
	assert.Equal(t, true, features["chainOfTrust"])

	extra := def["extra"].(map[string]any)
	cot := extra["chainOfTrust"].(map[string]any)
	inputs := cot["inputs"].(map[string]any)
	assert.Equal(t, "build-tid", inputs["build"])
}
