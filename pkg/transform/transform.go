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

// Package transform implements the per-kind transform pipeline: a named,
// ordered sequence of (Config, Stub) -> zero or more Stub stages. Each
// stage emits its stubs over a Go channel, and the stages run one after
// another: a stage's whole output is collected into a slice before the
// next stage starts.
package transform

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// Stub is a task definition mid-pipeline: a map value carrying at minimum
// "label", "description", "attributes", and "task" by the time it reaches
// the final `task` transform, but arbitrary shape at earlier stages.
type Stub = value.Value

// Config carries everything a transform stage needs, mirroring
// TransformConfig: the kind name and config, the resolved Parameters and
// GraphConfig, already-loaded kind-dependency tasks (by label), the kind
// directory on disk, and whether debug artifacts should be written.
type Config struct {
	Kind                  string
	KindConfig            value.Value
	Parameters            *parameters.Parameters
	GraphConfig           *graphconfig.GraphConfig
	KindDependenciesTasks map[string]*task.Task
	Path                  string
	WriteArtifacts        bool
}

// Func is one transform stage: it consumes stubs from in and produces zero
// or more stubs on out per input stub, mirroring a Python generator
// function of the same (config, stubs) -> stubs shape. Returning an error
// aborts the pipeline.
type Func func(ctx context.Context, cfg *Config, in Stub, out chan<- Stub) error

// namedFunc pairs a Func with the name used in TransformError context.
type namedFunc struct {
	name string
	fn   Func
}

// Sequence is an ordered list of transform stages, built once at kind-load
// time from the kind's `transforms:` list and run once per generation.
type Sequence struct {
	stages []namedFunc
}

// NewSequence returns an empty Sequence; stages are appended with Add.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Add appends a named stage.
func (s *Sequence) Add(name string, fn Func) {
	s.stages = append(s.stages, namedFunc{name: name, fn: fn})
}

// Run streams inputs through every stage in order and returns the final
// stubs, preserving the relative order stubs were emitted in (a stage may
// emit zero, one, or many stubs per input, but never reorders across
// inputs it did not fan out from).
func (s *Sequence) Run(ctx context.Context, cfg *Config, inputs []Stub) ([]Stub, error) {
	cur := inputs

	for _, nf := range s.stages {
		nextStage := make(chan Stub)
		var collected []Stub
		drained := make(chan struct{})
		go func() {
			for v := range nextStage {
				collected = append(collected, v)
			}
			close(drained)
		}()

		g, gctx := errgroup.WithContext(ctx)
		name, fn, in := nf.name, nf.fn, cur
		g.Go(func() error {
			defer close(nextStage)
			for _, stub := range in {
				if err := fn(gctx, cfg, stub, nextStage); err != nil {
					return &taskerrors.TransformError{Kind: cfg.Kind, Transform: name, Err: err}
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
			}
			return nil
		})
		err := g.Wait()
		<-drained
		if err != nil {
			return nil, err
		}
		cur = collected
	}

	return cur, nil
}
