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

	"github.com/taskcluster/taskgraph/pkg/registry"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// GroupByFunc partitions a set of upstream dependency tasks into groups;
// from-deps replicates the stub once per group.
type GroupByFunc func(deps []*task.Task, arg string) [][]*task.Task

// GroupByRegistry is the process-wide, write-once registry of group-by
// strategies. "single" and "all" are pre-registered; "attribute=<name>" is
// handled specially since its argument is embedded in the name rather than
// passed separately (see resolveGroupBy).
var GroupByRegistry = registry.New[GroupByFunc]()

func init() {
	GroupByRegistry.Register("single", groupBySingle)
	GroupByRegistry.Register("all", groupByAll)
	GroupByRegistry.Register("attribute", groupByAttribute)
}

func groupBySingle(deps []*task.Task, arg string) [][]*task.Task {
	groups := make([][]*task.Task, len(deps))
	for i, d := range deps {
		groups[i] = []*task.Task{d}
	}
	return groups
}

func groupByAll(deps []*task.Task, arg string) [][]*task.Task {
	if len(deps) == 0 {
		return nil
	}
	return [][]*task.Task{deps}
}

func groupByAttribute(deps []*task.Task, attrName string) [][]*task.Task {
	buckets := map[string][]*task.Task{}
	var keys []string
	for _, d := range deps {
		v := d.Attribute(attrName)
		key, _ := v.AsString()
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], d)
	}
	sort.Strings(keys)
	groups := make([][]*task.Task, len(keys))
	for i, k := range keys {
		groups[i] = buckets[k]
	}
	return groups
}

// resolveGroupBy parses a "group-by" spec such as "single", "all", or
// "attribute=build-type" into a function and its argument.
func resolveGroupBy(spec string) (GroupByFunc, string, error) {
	name, arg, _ := strings.Cut(spec, "=")
	fn, ok := GroupByRegistry.Get(name)
	if !ok {
		return nil, "", fmt.Errorf("unknown from-deps group-by strategy %q", name)
	}
	return fn, arg, nil
}

// FromDeps implements the from-deps built-in transform: it replicates a
// stub once per group of upstream kind-dependency tasks, recording
// dependencies, the primary-kind-dependency attribute, and (optionally)
// copying the primary dependency's attributes.
func FromDeps(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	fromDeps, ok := stub.Get("from-deps")
	if !ok {
		out <- stub
		return nil
	}

	kindDepsVal, _ := cfg.KindConfig.Get("kind-dependencies")
	kindDepsList, _ := kindDepsVal.AsList()
	kindDeps := make([]string, 0, len(kindDepsList))
	for _, k := range kindDepsList {
		if s, ok := k.AsString(); ok {
			kindDeps = append(kindDeps, s)
		}
	}

	kinds := kindDeps
	if kindsVal, ok := fromDeps.Get("kinds"); ok {
		list, _ := kindsVal.AsList()
		kinds = make([]string, 0, len(list))
		for _, k := range list {
			if s, ok := k.AsString(); ok {
				kinds = append(kinds, s)
			}
		}
	}
	if len(kinds) == 0 {
		return fmt.Errorf("from-deps requires at least one kind in kind-dependencies")
	}
	wantKind := map[string]bool{}
	for _, k := range kinds {
		wantKind[k] = true
	}

	var deps []*task.Task
	for _, dep := range cfg.KindDependenciesTasks {
		if wantKind[dep.Kind] {
			deps = append(deps, dep)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Label < deps[j].Label })

	groupBySpec := "single"
	if gb, ok := fromDeps.Get("group-by"); ok {
		if s, ok := gb.AsString(); ok {
			groupBySpec = s
		}
	}
	groupByFn, arg, err := resolveGroupBy(groupBySpec)
	if err != nil {
		return err
	}
	groups := groupByFn(deps, arg)

	copyAttributes := false
	if ca, ok := fromDeps.Get("copy-attributes"); ok {
		copyAttributes, _ = ca.AsBool()
	}

	base, _ := stub.AsMap()
	delete(base, "from-deps")

	for _, group := range groups {
		seenKind := map[string]bool{}
		for _, d := range group {
			if seenKind[d.Kind] {
				return fmt.Errorf("from-deps only allows a single task per kind in a group")
			}
			seenKind[d.Kind] = true
		}

		newStub := make(map[string]value.Value, len(base))
		for k, v := range base {
			newStub[k] = v
		}
		depsMap := make(map[string]value.Value, len(group))
		for _, d := range group {
			depsMap[d.Kind] = value.String(d.Label)
		}
		newStub["dependencies"] = value.Map(depsMap)

		var primaryKind string
		for _, k := range kinds {
			if seenKind[k] {
				primaryKind = k
				break
			}
		}
		if primaryKind == "" {
			return fmt.Errorf("from-deps could not detect primary kind")
		}
		var primaryDep *task.Task
		for _, d := range group {
			if d.Kind == primaryKind {
				primaryDep = d
				break
			}
		}

		attrs, _ := newStub["attributes"].AsMap()
		if attrs == nil {
			attrs = map[string]value.Value{}
		}
		attrs["primary-kind-dependency"] = value.String(primaryKind)

		if strings.HasPrefix(primaryDep.Label, primaryKind+"-") {
			newStub["name"] = value.String(strings.TrimPrefix(primaryDep.Label, primaryKind+"-"))
		} else {
			newStub["name"] = value.String(primaryDep.Label)
		}

		if copyAttributes {
			merged := make(map[string]value.Value, len(primaryDep.Attributes)+len(attrs))
			for k, v := range primaryDep.Attributes {
				merged[k] = v
			}
			for k, v := range attrs {
				merged[k] = v
			}
			attrs = merged
		}
		newStub["attributes"] = value.Map(attrs)

		out <- value.Map(newStub)
	}
	return nil
}
