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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// TaskContext implements the task-context built-in transform: it
// interpolates "{{key}}" placeholders into the fields named in
// task-context.substitution-fields from three sources, parameters (highest
// precedence) over from-object over from-file (lowest).
func TaskContext(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	tc, ok := stub.Get("task-context")
	if !ok {
		out <- stub
		return nil
	}

	fieldsVal, _ := tc.Get("substitution-fields")
	fieldList, _ := fieldsVal.AsList()
	fields := make([]string, 0, len(fieldList))
	for _, f := range fieldList {
		if s, ok := f.AsString(); ok {
			fields = append(fields, s)
		}
	}

	fileContext := map[string]value.Value{}
	if fromFile, ok := tc.Get("from-file"); ok {
		path, _ := fromFile.AsString()
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("task-context from-file %q: %w", path, err)
		}
		var decoded map[string]any
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("task-context from-file %q: %w", path, err)
		}
		for k, v := range decoded {
			fileContext[k] = value.FromAny(v)
		}
	}

	objectContext := map[string]value.Value{}
	if fromObject, ok := tc.Get("from-object"); ok {
		if m, ok := fromObject.AsMap(); ok {
			objectContext = m
		}
	}

	paramsContext := map[string]value.Value{}
	if fromParams, ok := tc.Get("from-parameters"); ok {
		m, _ := fromParams.AsMap()
		for varName, spec := range m {
			if path, ok := spec.AsString(); ok {
				if v, err := cfg.Parameters.Get(path); err == nil {
					paramsContext[varName] = v
				}
				continue
			}
			if choices, ok := spec.AsList(); ok {
				for _, choice := range choices {
					path, ok := choice.AsString()
					if !ok {
						continue
					}
					if v, err := cfg.Parameters.Get(path); err == nil {
						paramsContext[varName] = v
						break
					}
				}
			}
		}
	}

	subs := map[string]value.Value{}
	for k, v := range fileContext {
		subs[k] = v
	}
	for k, v := range objectContext {
		subs[k] = v
	}
	for k, v := range paramsContext {
		subs[k] = v
	}
	if name, ok := stub.Get("name"); ok {
		if _, has := subs["name"]; !has {
			subs["name"] = name
		}
	}

	m, _ := stub.AsMap()
	delete(m, "task-context")
	stub = value.Map(m)
	out <- SubstituteFields(stub, fields, subs)
	return nil
}
