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

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// chainOfTrustAttribute marks a task as requiring the chain-of-trust
// worker feature. It comes from the task's own attributes, which the task
// transform passes through unchanged; this morph reads it and never sets
// it.
const chainOfTrustAttribute = "chain-of-trust"

// addChainOfTrustMorph implements add-chain-of-trust: every task carrying
// the chain-of-trust attribute gets payload.features.chainOfTrust set and
// extra.chainOfTrust.inputs populated with one entry per dependency's
// resolved task-id, the artifact manifest the chain-of-trust worker feature
// needs to link a task's inputs back to the tasks that produced them.
func addChainOfTrustMorph(ctx context.Context, g *graph.Graph, tasks map[graph.Label]*task.Task, labelToTaskID map[graph.Label]string, params *parameters.Parameters, gc *graphconfig.GraphConfig) (*graph.Graph, map[graph.Label]*task.Task, map[graph.Label]string, error) {
	for _, t := range tasks {
		if !t.HasAttribute(chainOfTrustAttribute) {
			continue
		}
		if b, ok := t.Attribute(chainOfTrustAttribute).AsBool(); !ok || !b {
			continue
		}

		if t.TaskDefinition == nil {
			t.TaskDefinition = map[string]any{}
		}
		payload, _ := t.TaskDefinition["payload"].(map[string]any)
		if payload == nil {
			payload = map[string]any{}
		}
		features, _ := payload["features"].(map[string]any)
		if features == nil {
			features = map[string]any{}
		}
		features["chainOfTrust"] = true
		payload["features"] = features
		t.TaskDefinition["payload"] = payload

		extra, _ := t.TaskDefinition["extra"].(map[string]any)
		if extra == nil {
			extra = map[string]any{}
		}
		cot, _ := extra["chainOfTrust"].(map[string]any)
		if cot == nil {
			cot = map[string]any{}
		}
		inputs, _ := cot["inputs"].(map[string]any)
		if inputs == nil {
			inputs = map[string]any{}
		}
		for edgeName, depLabel := range t.Dependencies {
			if id, ok := labelToTaskID[graph.Label(depLabel)]; ok {
				inputs[edgeName] = id
			}
		}
		cot["inputs"] = inputs
		extra["chainOfTrust"] = cot
		t.TaskDefinition["extra"] = extra
	}
	return g, tasks, labelToTaskID, nil
}
