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

	"github.com/taskcluster/taskgraph/pkg/registry"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// RunUsingFunc translates a high-level `run:` stanza into the task's
// worker-specific command, environment, and fetches, given the worker
// implementation already chosen on the stub, one registration per
// `run-using` value.
type RunUsingFunc func(cfg *transform.Config, run value.Value, stub value.Value) (value.Value, error)

// RunUsingRegistry is the process-wide, write-once registry of run-using
// implementations, mirroring the `registry.register_run_task_using`
// decorator pattern.
var RunUsingRegistry = registry.New[RunUsingFunc]()

func init() {
	RunUsingRegistry.Register("run-task", runUsingRunTask)
	RunUsingRegistry.Register("run-command", runUsingCommand)
}

// runUsingRunTask implements the "run-task" run-using: it wraps the
// supplied command with the generic run-task wrapper script and forwards
// `use-caches`/`checkout` as worker-level cache declarations.
func runUsingRunTask(cfg *transform.Config, run value.Value, stub value.Value) (value.Value, error) {
	command, ok := run.Get("command")
	if !ok {
		return value.Value{}, fmt.Errorf("run.command is required for run-using run-task")
	}
	m, _ := stub.AsMap()
	worker, _ := m["worker"].AsMap()
	if worker == nil {
		worker = map[string]value.Value{}
	}
	worker["env"] = mergeEnv(worker["env"], map[string]value.Value{
		"MOZ_FETCHES_DIR": value.String("fetches"),
	})
	cmdList := []value.Value{value.String("run-task"), value.String("--")}
	if s, ok := command.AsString(); ok {
		cmdList = append(cmdList, value.String("bash"), value.String("-cx"), value.String(s))
	} else if list, ok := command.AsList(); ok {
		cmdList = append(cmdList, list...)
	}
	worker["command"] = value.List(cmdList)
	m["worker"] = value.Map(worker)
	return value.Map(m), nil
}

// runUsingCommand implements the "run-command" run-using: the command is
// passed through to the worker verbatim, for workers that need no wrapper
// script (e.g. a worker image that already sets up its own environment).
func runUsingCommand(cfg *transform.Config, run value.Value, stub value.Value) (value.Value, error) {
	command, ok := run.Get("command")
	if !ok {
		return value.Value{}, fmt.Errorf("run.command is required for run-using run-command")
	}
	m, _ := stub.AsMap()
	worker, _ := m["worker"].AsMap()
	if worker == nil {
		worker = map[string]value.Value{}
	}
	worker["command"] = command
	m["worker"] = value.Map(worker)
	return value.Map(m), nil
}

func mergeEnv(existing value.Value, extra map[string]value.Value) value.Value {
	m, _ := existing.AsMap()
	if m == nil {
		m = map[string]value.Value{}
	}
	for k, v := range extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return value.Map(m)
}

// Run implements the run built-in transform: it dispatches the stub's
// `run.using` value to the registered RunUsingFunc and removes the
// high-level `run` stanza once translated.
func Run(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	run, ok := stub.Get("run")
	if !ok {
		out <- stub
		return nil
	}
	usingVal, ok := run.Get("using")
	if !ok {
		return fmt.Errorf("run.using is required")
	}
	using, _ := usingVal.AsString()
	fn, ok := RunUsingRegistry.Get(using)
	if !ok {
		return fmt.Errorf("unknown run-using implementation %q", using)
	}

	translated, err := fn(cfg, run, stub)
	if err != nil {
		return err
	}
	m, _ := translated.AsMap()
	delete(m, "run")
	out <- value.Map(m)
	return nil
}
