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

package optimize

import (
	"context"
	"strings"
	"time"

	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// indexSearchStrategy mirrors strategies.py's IndexSearch: arg is an
// ordered list of index paths, the first whose indexed task is not
// failed/exception and whose expiration post-dates deadline wins.
type indexSearchStrategy struct{ baseStrategy }

func (indexSearchStrategy) ShouldReplaceTask(ctx context.Context, t *task.Task, params *parameters.Parameters, deadline time.Time, arg value.Value, batch *Batch) (string, bool) {
	paths, _ := arg.AsList()
	for _, p := range paths {
		path, ok := p.AsString()
		if !ok {
			continue
		}
		taskID, status, found := batch.Lookup(path)
		if !found {
			continue
		}
		if status.State == "failed" || status.State == "exception" {
			continue
		}
		if !deadline.IsZero() && !status.Expires.IsZero() && status.Expires.Before(deadline) {
			continue
		}
		return taskID, true
	}
	return "", false
}

// skipUnlessChangedStrategy mirrors strategies.py's SkipUnlessChanged: arg
// is a list of glob patterns; the task is removed unless at least one
// changed file matches a pattern.
type skipUnlessChangedStrategy struct{ baseStrategy }

func (skipUnlessChangedStrategy) ShouldRemoveTask(t *task.Task, params *parameters.Parameters, arg value.Value) bool {
	if params.String("repository_type") == "hg" && params.String("pushlog_id") == "-1" {
		return false
	}
	patterns, _ := arg.AsList()
	filesChanged := params.StringList("files_changed")
	for _, p := range patterns {
		pattern, ok := p.AsString()
		if !ok {
			continue
		}
		for _, f := range filesChanged {
			if matchGlob(pattern, f) {
				return false
			}
		}
	}
	return true
}

// matchGlob reports whether path matches pattern, where pattern may use "*"
// (any run of characters within a path segment) and "**" (any run of
// characters including "/").
func matchGlob(pattern, path string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchSegments(pat, path []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if matchSegments(pat[1:], path[i:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if !matchSegment(pat[0], path[0]) {
			return false
		}
		pat, path = pat[1:], path[1:]
	}
	return len(path) == 0
}

func matchSegment(pat, seg string) bool {
	ok, err := matchSimple(pat, seg)
	return err == nil && ok
}

// matchSimple implements "*" and "?" glob matching within a single path
// segment via a small recursive matcher (path.Match refuses patterns
// containing "/", which doesn't arise here since callers split on "/"
// first).
func matchSimple(pat, s string) (bool, error) {
	for len(pat) > 0 {
		switch pat[0] {
		case '*':
			if len(pat) == 1 {
				return true, nil
			}
			for i := 0; i <= len(s); i++ {
				if ok, _ := matchSimple(pat[1:], s[i:]); ok {
					return true, nil
				}
			}
			return false, nil
		case '?':
			if len(s) == 0 {
				return false, nil
			}
			pat, s = pat[1:], s[1:]
		default:
			if len(s) == 0 || pat[0] != s[0] {
				return false, nil
			}
			pat, s = pat[1:], s[1:]
		}
	}
	return len(s) == 0, nil
}
