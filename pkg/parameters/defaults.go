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

package parameters

import (
	"context"

	"github.com/taskcluster/taskgraph/pkg/value"
)

// VCS is the subset of repository introspection Defaults needs to fill in
// parameters nobody supplied: the base/head revisions, the set of changed
// files, and which remote/branch to treat as upstream. It is a superset of
// pkg/vcs.VCS adding HeadRev/HeadRef, which Defaults needs but pkg/vcs.VCS
// doesn't name; *vcs.Git implements both. A real implementation shells out
// to git; tests supply a fake.
type VCS interface {
	// DefaultBranch returns the branch a fresh checkout would be on, e.g.
	// "main".
	DefaultBranch(ctx context.Context) (string, error)
	// RemoteName returns the remote headRef tracks, e.g. "origin".
	RemoteName(ctx context.Context, headRef string) (string, error)
	// DoesRevisionExistLocally reports whether rev is present in the local
	// repository without fetching.
	DoesRevisionExistLocally(ctx context.Context, rev string) bool
	// FindLatestCommonRevision returns the merge-base of a and b.
	FindLatestCommonRevision(ctx context.Context, a, b string) (string, error)
	// HeadRev returns the checked-out revision.
	HeadRev(ctx context.Context) (string, error)
	// HeadRef returns the checked-out ref name, if any.
	HeadRef(ctx context.Context) (string, error)
	// GetFilesChanged returns the files that differ between base and head.
	GetFilesChanged(ctx context.Context, base, head string) ([]string, error)
}

// Defaults fills in a Parameters entirely from repository state, for local
// development and ad hoc invocations where no parameters file is given:
// base_rev/base_ref default to the merge-base with the default branch,
// head_rev/head_ref to the current checkout, and files_changed to their
// diff.
func Defaults(ctx context.Context, vcs VCS, repositoryType, headRepository string) (*Parameters, error) {
	headRev, err := vcs.HeadRev(ctx)
	if err != nil {
		return nil, err
	}
	return DefaultsAt(ctx, vcs, headRev, repositoryType, headRepository)
}

// DefaultsAt is Defaults with the head revision pinned to headRev instead
// of read from the checkout, for tooling that needs a Parameters as of
// some other revision without checking it out (the CLI's --diff mode).
// headRef is looked up only when headRev is the actual checkout (the VCS
// interface has no way to name an arbitrary revision's ref), so in that
// case DefaultsAt reports the true current ref; otherwise head_ref equals
// head_rev, since an arbitrary revspec has no associated branch name.
func DefaultsAt(ctx context.Context, vcs VCS, headRev, repositoryType, headRepository string) (*Parameters, error) {
	headRef := headRev
	if actual, err := vcs.HeadRev(ctx); err == nil && actual == headRev {
		if ref, err := vcs.HeadRef(ctx); err == nil {
			headRef = ref
		}
	}

	remote, err := vcs.RemoteName(ctx, headRef)
	if err != nil || remote == "" {
		remote = "origin"
	}
	branch, err := vcs.DefaultBranch(ctx)
	if err != nil {
		return nil, err
	}
	baseRef := remote + "/" + branch

	baseRev := headRev
	if vcs.DoesRevisionExistLocally(ctx, baseRef) {
		common, err := vcs.FindLatestCommonRevision(ctx, baseRef, headRev)
		if err != nil {
			return nil, err
		}
		baseRev = common
	}

	filesChanged, err := vcs.GetFilesChanged(ctx, baseRev, headRev)
	if err != nil {
		return nil, err
	}
	changed := make([]value.Value, len(filesChanged))
	for i, f := range filesChanged {
		changed[i] = value.String(f)
	}

	values := map[string]value.Value{
		"base_repository":       value.String(headRepository),
		"base_rev":              value.String(baseRev),
		"base_ref":              value.String(baseRef),
		"head_repository":       value.String(headRepository),
		"head_rev":              value.String(headRev),
		"head_ref":              value.String(headRef),
		"owner":                 value.String("nobody@taskgraph.invalid"),
		"project":               value.String("local"),
		"level":                 value.String("1"),
		"repository_type":       value.String(repositoryType),
		"tasks_for":             value.String(""),
		"target_tasks_method":   value.String("default"),
		"filters":               value.List([]value.Value{value.String("target_tasks_method")}),
		"optimize_target_tasks": value.Bool(true),
		"do_not_optimize":       value.List(nil),
		"existing_tasks":        value.Map(nil),
		"enable_always_target":  value.Bool(false),
		"files_changed":         value.List(changed),
		"build_date":            value.Int(0),
		"pushlog_id":            value.String("0"),
		"pushdate":              value.Int(0),
	}
	return New(values)
}
