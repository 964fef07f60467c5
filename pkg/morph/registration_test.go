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

package morph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// TestRegisterRunsInRegistrationOrder mirrors test_register_morph: morphs
// fire in the order Register was called, not re-sorted by name, and each
// sees the previous morph's mutated state.
func TestRegisterRunsInRegistrationOrder(t *testing.T) {
	saved := registeredMorphs
	registeredMorphs = nil
	defer func() { registeredMorphs = saved }()

	var order []string
	Register("first", func(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, _ *parameters.Parameters, _ *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
		order = append(order, "first")
		return g, tasks, labelToTaskID, nil
	})
	Register("second", func(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, _ *parameters.Parameters, _ *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
		order = append(order, "second")
		return g, tasks, labelToTaskID, nil
	})

	g := graph.New(nil, nil)
	finalG, _, labelToTaskID, err := Run(context.Background(), g, map[graph.Label]*task.Task{}, map[graph.Label]string{}, nil, nil)
	require.NoError(t, err)
	assert.Same(t, g, finalG)
	assert.Empty(t, labelToTaskID)
	assert.Equal(t, []string{"first", "second"}, order)
}
