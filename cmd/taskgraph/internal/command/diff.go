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

package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/pkg/generator"
	"github.com/taskcluster/taskgraph/pkg/graphconfig"
	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/vcs"
)

// runDiff implements --diff's two-run comparison: one
// Generator run against the ordinary resolved parameters, one against the
// same parameters with head_rev/head_ref pinned to revspec instead, then a
// label-to-taskid-shaped diff of the two. It only supports the single
// implicit Defaults() parameters set, since --diff's revspec only makes
// sense relative to the working copy's own history.
func runDiff(ctx context.Context, stream *view.Stream, opts *globalOptions, revspec string, phase phaseFunc) error {
	if len(opts.parameters) != 0 {
		return &usageError{fmt.Errorf("--diff is only supported without --parameters (it compares the working copy against a revision of itself)")}
	}

	client := newPlatformClient(opts)
	v := vcs.New(opts.root)

	newGenerator := func(paramsFn generator.ParametersFunc) *generator.Generator {
		gen := generator.New(opts.root, paramsFn, opts.decisionTaskID, client)
		gen.EnableVerifications = !opts.noVerify
		return gen
	}

	headParams := func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
		return parameters.Defaults(ctx, v, "git", opts.root)
	}
	_, headTasks, err := phase(ctx, newGenerator(headParams))
	if err != nil {
		return &generationError{fmt.Errorf("generating at HEAD: %w", err)}
	}
	headTasks = filterTasks(headTasks, opts)

	otherParams := func(gc *graphconfig.GraphConfig) (*parameters.Parameters, error) {
		return parameters.DefaultsAt(ctx, v, revspec, "git", opts.root)
	}
	_, otherTasks, err := phase(ctx, newGenerator(otherParams))
	if err != nil {
		return &generationError{fmt.Errorf("generating at %s: %w", revspec, err)}
	}
	otherTasks = filterTasks(otherTasks, opts)

	added, removed, common := diffLabels(sortedLabels(otherTasks), sortedLabels(headTasks))
	for _, l := range added {
		stream.Printf("+ %s\n", l)
	}
	for _, l := range removed {
		stream.Printf("- %s\n", l)
	}
	stream.Printf("%d unchanged, %d added, %d removed (vs %s)\n", len(common), len(added), len(removed), revspec)
	return nil
}

// diffLabels compares old and new sorted label sets, returning labels
// added in new, removed from old, and present in both.
func diffLabels(old, new []string) (added, removed, common []string) {
	oldSet := make(map[string]bool, len(old))
	for _, l := range old {
		oldSet[l] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, l := range new {
		newSet[l] = true
	}
	for _, l := range new {
		if oldSet[l] {
			common = append(common, l)
		} else {
			added = append(added, l)
		}
	}
	for _, l := range old {
		if !newSet[l] {
			removed = append(removed, l)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(common)
	return added, removed, common
}
