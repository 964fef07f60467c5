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

package task

import (
	"github.com/taskcluster/taskgraph/pkg/schema"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// DeepMerge merges override onto base: for each key, if both sides are
// maps, recurse; if either side is a by-* conditional, override wins whole
// (no merge); otherwise override wins.
func DeepMerge(base, override value.Value) value.Value {
	if schema.IsKeyedBy(base) || schema.IsKeyedBy(override) {
		return override
	}
	baseMap, baseIsMap := base.AsMap()
	overrideMap, overrideIsMap := override.AsMap()
	if !baseIsMap || !overrideIsMap {
		return override
	}

	out := make(map[string]value.Value, len(baseMap)+len(overrideMap))
	for k, v := range baseMap {
		out[k] = v
	}
	for k, v := range overrideMap {
		if bv, ok := baseMap[k]; ok {
			out[k] = DeepMerge(bv, v)
		} else {
			out[k] = v
		}
	}
	return value.Map(out)
}

// ApplyDefaults merges defaults (base) with stub (override) per task.
func ApplyDefaults(defaults, stub value.Value) value.Value {
	return DeepMerge(defaults, stub)
}
