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

// Package kind loads one kind.yml directory at a time: its config, its
// loader (which produces raw task stubs), and its transform sequence
// (which turns stubs into pkg/task.Task values).
package kind

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/registry"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// ErrNotFound is returned by Load when a kind directory has no kind.yml.
type ErrNotFound struct{ Path string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("no kind.yml at %s", e.Path) }

// Loader produces raw task stubs for a kind, given its config, parameters,
// and already-loaded kind-dependency tasks. Mirrors the callable resolved
// from kind.yml's `loader:` key.
type Loader func(ctx context.Context, name, path string, config value.Value, params *parameters.Parameters, kindDependenciesTasks []*task.Task) ([]transform.Stub, error)

// LoaderRegistry is the process-wide, write-once registry of named loaders.
// "default" is pre-registered as DefaultLoader.
var LoaderRegistry = registry.New[Loader]()

func init() {
	LoaderRegistry.Register("default", DefaultLoader)
}

// CachedTasksFunc runs the cached-tasks transform over an entire kind's
// stubs at once; it is wired up by pkg/transform/builtin's init() (which
// imports this package) rather than implemented here, to keep kind.go free
// of any single transform's domain logic.
var CachedTasksFunc func(ctx context.Context, cfg *transform.Config, stubs []transform.Stub) ([]transform.Stub, error)

// TransformRegistry is the process-wide, write-once registry mapping a
// transform name (as it appears in kind.yml's `transforms:` list) to its
// Func, the Go analogue of find_object resolving a dotted Python path.
var TransformRegistry = registry.New[transform.Func]()

// Kind is one loaded kind.yml: its name, directory, decoded config, and a
// reference to the shared GraphConfig.
type Kind struct {
	Name        string
	Path        string
	Config      value.Value
	GraphConfig *graphconfig.GraphConfig
}

// Load reads and decodes kindName/kind.yml under graphConfig.KindsDir().
func Load(graphConfig *graphconfig.GraphConfig, kindName string) (*Kind, error) {
	path := filepath.Join(graphConfig.KindsDir(), kindName)
	kindYML := filepath.Join(path, "kind.yml")
	if _, err := os.Stat(kindYML); err != nil {
		return nil, &ErrNotFound{Path: kindYML}
	}

	raw, err := os.ReadFile(kindYML)
	if err != nil {
		return nil, &taskerrors.ConfigError{Path: kindYML, Err: err}
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, &taskerrors.ConfigError{Path: kindYML, Err: err}
	}

	return &Kind{
		Name:        kindName,
		Path:        path,
		Config:      value.FromAny(decoded),
		GraphConfig: graphConfig,
	}, nil
}

// KindDependencies returns the kind-dependencies list, the implicit
// predecessor kinds whose tasks this kind's loader/transforms may consume.
func (k *Kind) KindDependencies() []string {
	v, ok := k.Config.Get("kind-dependencies")
	if !ok {
		return nil
	}
	list, _ := v.AsList()
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

func (k *Kind) loaderName() string {
	if v, ok := k.Config.Get("loader"); ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return "default"
}

func (k *Kind) transformNames() ([]string, error) {
	v, ok := k.Config.Get("transforms")
	if !ok {
		return nil, &taskerrors.LoaderError{Kind: k.Name, Err: fmt.Errorf("kind.yml must list transforms")}
	}
	list, _ := v.AsList()
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.AsString(); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// LoadTasks runs the kind's loader and transform sequence, producing the
// kind's Task set, mirroring Kind.load_tasks.
func (k *Kind) LoadTasks(ctx context.Context, params *parameters.Parameters, kindDependenciesTasks map[string]*task.Task) ([]*task.Task, error) {
	loaderFn, ok := LoaderRegistry.Get(k.loaderName())
	if !ok {
		return nil, &taskerrors.LoaderError{Kind: k.Name, Err: fmt.Errorf("unknown loader %q", k.loaderName())}
	}

	deps := make([]*task.Task, 0, len(kindDependenciesTasks))
	for _, t := range kindDependenciesTasks {
		deps = append(deps, t)
	}

	stubs, err := loaderFn(ctx, k.Name, k.Path, k.Config, params, deps)
	if err != nil {
		return nil, &taskerrors.LoaderError{Kind: k.Name, Err: err}
	}

	names, err := k.transformNames()
	if err != nil {
		return nil, err
	}
	seq := transform.NewSequence()
	wantsCachedTasks := false
	for _, name := range names {
		// cached-tasks needs visibility across every stub of the kind at
		// once (to order parent-before-child within the kind and thread
		// digests between them), so it can't be a per-stub Func like the
		// rest of the pipeline; it runs once, after the per-stub sequence.
		if name == "cached-tasks" {
			wantsCachedTasks = true
			continue
		}
		fn, ok := TransformRegistry.Get(name)
		if !ok {
			return nil, &taskerrors.LoaderError{Kind: k.Name, Err: fmt.Errorf("unknown transform %q", name)}
		}
		seq.Add(name, fn)
	}

	cfg := &transform.Config{
		Kind:                  k.Name,
		KindConfig:            k.Config,
		Parameters:            params,
		GraphConfig:           k.GraphConfig,
		KindDependenciesTasks: kindDependenciesTasks,
		Path:                  k.Path,
	}

	outStubs, err := seq.Run(ctx, cfg, stubs)
	if err != nil {
		return nil, err
	}

	if wantsCachedTasks {
		if CachedTasksFunc == nil {
			return nil, &taskerrors.LoaderError{Kind: k.Name, Err: fmt.Errorf("cached-tasks transform requested but not registered")}
		}
		outStubs, err = CachedTasksFunc(ctx, cfg, outStubs)
		if err != nil {
			return nil, &taskerrors.LoaderError{Kind: k.Name, Err: err}
		}
	}

	tasks := make([]*task.Task, 0, len(outStubs))
	for _, stub := range outStubs {
		t, err := stubToTask(k.Name, stub)
		if err != nil {
			return nil, &taskerrors.LoaderError{Kind: k.Name, Err: err}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func stubToTask(kind string, stub value.Value) (*task.Task, error) {
	m, ok := stub.AsMap()
	if !ok {
		return nil, fmt.Errorf("transform output is not an object")
	}
	label, ok := m["label"].AsString()
	if !ok || label == "" {
		return nil, fmt.Errorf("transform output is missing a label")
	}

	t := &task.Task{
		Kind:  kind,
		Label: label,
	}
	if desc, ok := m["description"]; ok {
		t.Description, _ = desc.AsString()
	}
	if attrs, ok := m["attributes"].AsMap(); ok {
		t.Attributes = attrs
	}
	if taskDef, ok := m["task"]; ok {
		t.TaskDefinition, _ = value.ToAny(taskDef).(map[string]any)
	}
	if deps, ok := m["dependencies"].AsMap(); ok {
		t.Dependencies = make(map[string]string, len(deps))
		for k, v := range deps {
			s, _ := v.AsString()
			t.Dependencies[k] = s
		}
	}
	if soft, ok := m["soft-dependencies"].AsList(); ok {
		for _, s := range soft {
			if str, ok := s.AsString(); ok {
				t.SoftDependencies = append(t.SoftDependencies, str)
			}
		}
	}
	if ifDeps, ok := m["if-dependencies"].AsList(); ok {
		for _, s := range ifDeps {
			if str, ok := s.AsString(); ok {
				t.IfDependencies = append(t.IfDependencies, str)
			}
		}
	}
	if opt, ok := m["optimization"].AsMap(); ok {
		t.Optimization = task.OptimizationSpec(opt)
	}
	return t, nil
}

// DefaultLoader reads the `tasks:` mapping from kind.yml (label -> stub),
// deep-merging each stub over `task-defaults`, and produces one stub per
// entry with its label set. Mirrors taskgraph.loader.default's loader.
func DefaultLoader(ctx context.Context, name, path string, config value.Value, params *parameters.Parameters, kindDependenciesTasks []*task.Task) ([]transform.Stub, error) {
	tasksVal, ok := config.Get("tasks")
	if !ok {
		return nil, fmt.Errorf("kind.yml must define `tasks`")
	}
	tasksMap, ok := tasksVal.AsMap()
	if !ok {
		return nil, fmt.Errorf("kind.yml `tasks` must be a mapping")
	}

	defaults, _ := config.Get("task-defaults")

	labels := make([]string, 0, len(tasksMap))
	for label := range tasksMap {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]transform.Stub, 0, len(labels))
	for _, label := range labels {
		merged := task.ApplyDefaults(defaults, tasksMap[label])
		m, _ := merged.AsMap()
		m["label"] = value.String(label)
		out = append(out, value.Map(m))
	}
	return out, nil
}
