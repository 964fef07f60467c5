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

// Package multigen runs a Generator's morphed-task-graph phase over
// several Parameters sets concurrently, one goroutine per set, with each
// set's logs buffered and flushed together under a per-set header once
// that set finishes.
package multigen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/taskcluster/taskgraph/pkg/generator"
	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
)

// Set is one Parameters set to generate against, identified by Label for
// log headers and result lookup.
type Set struct {
	Label      string
	Parameters generator.ParametersFunc
}

// Result is one Set's outcome: either a morphed task graph plus its tasks,
// or an error. Log holds everything that Set's generation logged, to be
// printed under its header regardless of success or failure.
type Result struct {
	Label string
	Graph *graph.Graph
	Tasks map[string]*task.Task
	Log   string
	Err   error
}

// Run generates every set concurrently and returns one Result per set, in
// the same order as sets. Each goroutine gets its own *slog.Logger writing
// into a private buffer; Run flushes the buffer into the Result's Log field
// rather than interleaving output across goroutines on a shared writer.
// A set's failure does not cancel its siblings — this deliberately does
// not use errgroup.WithContext, since generation workers are run entirely
// independently and the point of the pool is that every set gets a chance
// to report its own outcome. Run itself returns a non-nil error if any set
// failed, so a caller's exit status reflects the aggregate, while Results
// still carries every individual set's error alongside its log.
func Run(ctx context.Context, rootDir string, sets []Set, newGenerator func(root string, p generator.ParametersFunc) *generator.Generator, maxConcurrent int) ([]Result, error) {
	return RunPhase(ctx, rootDir, sets, newGenerator, func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error) {
		return gen.MorphedTaskGraph(ctx)
	}, nil, maxConcurrent)
}

// RunPhase is Run generalized to any Generator phase method, so a caller
// (the CLI's subcommands, one per phase) can fan a multi-set request out to
// whichever phase it was invoked for rather than always going all the way
// to the morphed graph. newLogger builds the per-set buffered logger; a nil
// newLogger falls back to a plain text handler at the default level, which
// is all the package's own tests need.
func RunPhase(ctx context.Context, rootDir string, sets []Set, newGenerator func(root string, p generator.ParametersFunc) *generator.Generator, phase func(ctx context.Context, gen *generator.Generator) (*graph.Graph, map[string]*task.Task, error), newLogger func(w io.Writer) *slog.Logger, maxConcurrent int) ([]Result, error) {
	if newLogger == nil {
		newLogger = func(w io.Writer) *slog.Logger { return slog.New(slog.NewTextHandler(w, nil)) }
	}

	results := make([]Result, len(sets))

	var g errgroup.Group
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	var failed int32
	var mu sync.Mutex

	for i, set := range sets {
		i, set := i, set
		g.Go(func() error {
			var buf bytes.Buffer
			logger := newLogger(&buf)

			gen := newGenerator(rootDir, wrapParameters(set.Parameters, logger))
			phaseGraph, tasks, err := phase(ctx, gen)

			mu.Lock()
			results[i] = Result{Label: set.Label, Graph: phaseGraph, Tasks: tasks, Log: buf.String(), Err: err}
			if err != nil {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		return results, fmt.Errorf("multigen: %d of %d parameter sets failed", failed, len(sets))
	}
	return results, nil
}

// wrapParameters attaches logger to the graphconfig callback chain so a
// Set's ParametersFunc can log through the set's own buffered logger rather
// than a shared package-level one. Parameters construction itself rarely
// needs to log, but the hook keeps the logger available to callers that do
// (e.g. a ParametersFunc that reports which defaults it filled in).
func wrapParameters(fn generator.ParametersFunc, logger *slog.Logger) generator.ParametersFunc {
	return func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
		logger.Debug("resolving parameters")
		return fn(gc)
	}
}
