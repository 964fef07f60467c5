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

package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/expr"
)

func TestEvalString(t *testing.T) {
	out, err := expr.Eval(`"task-" + suffix`, map[string]any{"suffix": "a"})
	require.NoError(t, err)
	assert.Equal(t, "task-a", out)
}

func TestEvalInt(t *testing.T) {
	out, err := expr.Eval(`rank + 1`, map[string]any{"rank": int64(41)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)
}

func TestEvalList(t *testing.T) {
	out, err := expr.Eval(`deps.map(d, d + "-tid")`, map[string]any{
		"deps": []any{"build", "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"build-tid", "test-tid"}, out)
}

func TestEvalMap(t *testing.T) {
	out, err := expr.Eval(`{"owner": task.owner, "rank": 7}`, map[string]any{
		"task": map[string]any{"owner": "me@example.invalid"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "me@example.invalid", "rank": int64(7)}, out)
}

func TestEvalBool(t *testing.T) {
	ok, err := expr.EvalBool(`level >= "2"`, map[string]any{"level": "3"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalBoolWrongType(t *testing.T) {
	_, err := expr.EvalBool(`1 + 1`, map[string]any{})
	assert.Error(t, err)
}

func TestCompileReused(t *testing.T) {
	compiled, err := expr.Compile(`"v" + n`, []string{"n"})
	require.NoError(t, err)

	a, err := compiled.Eval(map[string]any{"n": "1"})
	require.NoError(t, err)
	assert.Equal(t, "v1", a)

	b, err := compiled.Eval(map[string]any{"n": "2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", b)
}

func TestCompileError(t *testing.T) {
	_, err := expr.Compile(`not valid cel (`, nil)
	assert.Error(t, err)
}
