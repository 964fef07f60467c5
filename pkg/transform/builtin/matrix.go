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

package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

type matrixAxis struct {
	name   string
	values []value.Value
}

// Matrix implements the matrix built-in transform: given `matrix.setup`, a
// mapping of axis name to list of values, it produces the Cartesian product
// of all axes minus any combination named in `matrix.exclude`,
// interpolating each chosen tuple into `matrix.substitution-fields` and the
// stub's label, and recording the tuple under attributes.matrix.
func Matrix(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	matrixCfg, ok := stub.Get("matrix")
	if !ok {
		out <- stub
		return nil
	}

	setupVal, ok := matrixCfg.Get("setup")
	if !ok {
		return fmt.Errorf("matrix.setup is required")
	}
	setupMap, ok := setupVal.AsMap()
	if !ok {
		return fmt.Errorf("matrix.setup must be a mapping of axis name to values")
	}
	axisNames := make([]string, 0, len(setupMap))
	for name := range setupMap {
		axisNames = append(axisNames, name)
	}
	sort.Strings(axisNames)

	axes := make([]matrixAxis, 0, len(axisNames))
	for _, name := range axisNames {
		list, _ := setupMap[name].AsList()
		axes = append(axes, matrixAxis{name: name, values: list})
	}

	excludeSet := map[string]bool{}
	if excludeVal, ok := matrixCfg.Get("exclude"); ok {
		excludeList, _ := excludeVal.AsList()
		for _, e := range excludeList {
			excludeSet[excludeKey(e)] = true
		}
	}

	fieldsVal, _ := matrixCfg.Get("substitution-fields")
	fieldList, _ := fieldsVal.AsList()
	fields := make([]string, 0, len(fieldList))
	for _, f := range fieldList {
		if s, ok := f.AsString(); ok {
			fields = append(fields, s)
		}
	}

	base, _ := stub.AsMap()
	delete(base, "matrix")
	baseStub := value.Map(base)

	combos := cartesianProduct(axes)
	for _, combo := range combos {
		if excludeSet[excludeKey(value.Map(combo))] {
			continue
		}

		subs := make(map[string]value.Value, len(combo))
		var labelParts []string
		for _, name := range axisNames {
			subs[name] = combo[name]
			labelParts = append(labelParts, renderScalar(combo[name]))
		}

		sub := baseStub
		attrs, ok := sub.Get("attributes")
		if !ok {
			attrs = value.Map(nil)
		}
		am, _ := attrs.AsMap()
		am["matrix"] = value.Map(combo)
		sub = DeepSet(sub, "attributes", value.Map(am))
		sub = SubstituteFields(sub, fields, subs)

		if labelVal, ok := sub.Get("label"); ok {
			if labelStr, ok := labelVal.AsString(); ok {
				sub = DeepSet(sub, "label", value.String(labelStr+"-"+strings.Join(labelParts, "-")))
			}
		}

		out <- sub
	}
	return nil
}

func excludeKey(v value.Value) string {
	m, _ := v.AsMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, k+"="+renderScalar(m[k]))
	}
	return strings.Join(parts, ",")
}

func cartesianProduct(axes []matrixAxis) []map[string]value.Value {
	combos := []map[string]value.Value{{}}
	for _, axis := range axes {
		var next []map[string]value.Value
		for _, combo := range combos {
			for _, v := range axis.values {
				extended := make(map[string]value.Value, len(combo)+1)
				for k, vv := range combo {
					extended[k] = vv
				}
				extended[axis.name] = v
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}
