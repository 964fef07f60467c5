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
	"time"

	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/task"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// argList splits arg into one sub-argument per sub-strategy: a list value
// supplies one entry per sub-strategy positionally, anything else (including
// a single scalar, or an absent arg) is broadcast to every sub-strategy.
func argList(arg value.Value, n int) []value.Value {
	out := make([]value.Value, n)
	if list, ok := arg.AsList(); ok {
		copy(out, list)
		return out
	}
	for i := range out {
		out[i] = arg
	}
	return out
}

type allStrategy struct {
	baseStrategy
	subs []Strategy
}

// All combines sub-strategies with AND semantics for removal (every
// sub-strategy must agree to remove) and first-match semantics for
// replacement (the first sub-strategy willing to replace wins).
func All(subs ...Strategy) Strategy { return &allStrategy{subs: subs} }

func (a *allStrategy) ShouldRemoveTask(t *task.Task, p *parameters.Parameters, arg value.Value) bool {
	if len(a.subs) == 0 {
		return false
	}
	args := argList(arg, len(a.subs))
	for i, s := range a.subs {
		if !s.ShouldRemoveTask(t, p, args[i]) {
			return false
		}
	}
	return true
}

func (a *allStrategy) ShouldReplaceTask(ctx context.Context, t *task.Task, p *parameters.Parameters, deadline time.Time, arg value.Value, batch *Batch) (string, bool) {
	args := argList(arg, len(a.subs))
	for i, s := range a.subs {
		if id, ok := s.ShouldReplaceTask(ctx, t, p, deadline, args[i], batch); ok {
			return id, true
		}
	}
	return "", false
}

type anyStrategy struct {
	baseStrategy
	subs []Strategy
}

// Any combines sub-strategies with OR semantics for removal (any one
// sub-strategy agreeing is enough) and first-match semantics for
// replacement.
func Any(subs ...Strategy) Strategy { return &anyStrategy{subs: subs} }

func (a *anyStrategy) ShouldRemoveTask(t *task.Task, p *parameters.Parameters, arg value.Value) bool {
	args := argList(arg, len(a.subs))
	for i, s := range a.subs {
		if s.ShouldRemoveTask(t, p, args[i]) {
			return true
		}
	}
	return false
}

func (a *anyStrategy) ShouldReplaceTask(ctx context.Context, t *task.Task, p *parameters.Parameters, deadline time.Time, arg value.Value, batch *Batch) (string, bool) {
	args := argList(arg, len(a.subs))
	for i, s := range a.subs {
		if id, ok := s.ShouldReplaceTask(ctx, t, p, deadline, args[i], batch); ok {
			return id, true
		}
	}
	return "", false
}

type notStrategy struct {
	baseStrategy
	sub Strategy
}

// Not negates a sub-strategy's removal answer. It has no sensible
// replacement semantics (negating "replace with task X" isn't a thing), so
// ShouldReplaceTask always declines via baseStrategy.
func Not(sub Strategy) Strategy { return &notStrategy{sub: sub} }

func (n *notStrategy) ShouldRemoveTask(t *task.Task, p *parameters.Parameters, arg value.Value) bool {
	return !n.sub.ShouldRemoveTask(t, p, arg)
}

type aliasStrategy struct {
	baseStrategy
	sub Strategy
	arg value.Value
}

// Alias binds a sub-strategy to a fixed argument so it can be registered
// under a new name and referenced from an optimization spec with no
// argument of its own, composing a named strategy once (e.g.
// "skip-unless-schedules") out of a generic one plus a fixed arg.
func Alias(sub Strategy, arg value.Value) Strategy { return &aliasStrategy{sub: sub, arg: arg} }

func (a *aliasStrategy) ShouldRemoveTask(t *task.Task, p *parameters.Parameters, _ value.Value) bool {
	return a.sub.ShouldRemoveTask(t, p, a.arg)
}

func (a *aliasStrategy) ShouldReplaceTask(ctx context.Context, t *task.Task, p *parameters.Parameters, deadline time.Time, _ value.Value, batch *Batch) (string, bool) {
	return a.sub.ShouldReplaceTask(ctx, t, p, deadline, a.arg, batch)
}
