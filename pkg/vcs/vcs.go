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

// Package vcs implements a small version-control abstraction, used by
// pkg/parameters.Defaults to fill in revision/ref fields when no
// parameters file is given, and by the CLI's --diff mode to resolve the
// common ancestor between two revisions.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// VCS is the abstract interface the rest of the engine depends on.
// Implementations shell out to a real version-control tool; Git is the
// only one this package implements.
type VCS interface {
	// GetFilesChanged lists the paths that differ between baseRev and
	// headRev.
	GetFilesChanged(ctx context.Context, baseRev, headRev string) ([]string, error)

	// DoesRevisionExistLocally reports whether rev resolves in the local
	// repository without contacting any remote.
	DoesRevisionExistLocally(ctx context.Context, rev string) bool

	// FindLatestCommonRevision returns the merge base of baseRef and
	// headRev.
	FindLatestCommonRevision(ctx context.Context, baseRef, headRev string) (string, error)

	// DefaultBranch returns the repository's configured default branch.
	DefaultBranch(ctx context.Context) (string, error)

	// RemoteName returns the name of the remote headRef's upstream
	// tracks, or "" if headRef has no upstream.
	RemoteName(ctx context.Context, headRef string) (string, error)
}

// Git is a VCS backed by the git binary, run against Root.
type Git struct {
	Root string
}

// New returns a Git VCS rooted at root.
func New(root string) *Git {
	return &Git{Root: root}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *Git) GetFilesChanged(ctx context.Context, baseRev, headRev string) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", baseRev+".."+headRev)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (g *Git) DoesRevisionExistLocally(ctx context.Context, rev string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	return err == nil
}

func (g *Git) FindLatestCommonRevision(ctx context.Context, baseRef, headRev string) (string, error) {
	return g.run(ctx, "merge-base", baseRef, headRev)
}

func (g *Git) DefaultBranch(ctx context.Context) (string, error) {
	if ref, err := g.run(ctx, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(ref, "origin/"), nil
	}
	branch, err := g.run(ctx, "config", "init.defaultBranch")
	if err != nil || branch == "" {
		return "master", nil
	}
	return branch, nil
}

// HeadRev returns the currently checked-out revision. Not part of the VCS
// interface, but needed by pkg/parameters.Defaults to fill in head_rev
// when no parameters file is given.
func (g *Git) HeadRev(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "HEAD")
}

// HeadRef returns the currently checked-out branch, or "HEAD" if detached.
func (g *Git) HeadRef(ctx context.Context) (string, error) {
	ref, err := g.run(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "HEAD", nil
	}
	return ref, nil
}

func (g *Git) RemoteName(ctx context.Context, headRef string) (string, error) {
	upstream, err := g.run(ctx, "rev-parse", "--abbrev-ref", headRef+"@{upstream}")
	if err != nil {
		return "", nil
	}
	remote, _, ok := strings.Cut(upstream, "/")
	if !ok {
		return "", nil
	}
	return remote, nil
}
