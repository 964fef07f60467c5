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

package parameters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/parameters"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func validValues() map[string]value.Value {
	return map[string]value.Value{
		"base_repository":       value.String("https://example.invalid/repo"),
		"base_rev":              value.String("aaaa"),
		"base_ref":              value.String("origin/main"),
		"head_repository":       value.String("https://example.invalid/repo"),
		"head_rev":              value.String("bbbb"),
		"head_ref":              value.String("refs/heads/topic"),
		"owner":                 value.String("someone@example.invalid"),
		"project":               value.String("myproject"),
		"level":                 value.String("3"),
		"repository_type":       value.String("git"),
		"tasks_for":             value.String("github-push"),
		"target_tasks_method":   value.String("default"),
		"filters":               value.List([]value.Value{value.String("target_tasks_method")}),
		"optimize_target_tasks": value.Bool(true),
		"do_not_optimize":       value.List(nil),
		"existing_tasks":        value.Map(nil),
		"enable_always_target":  value.Bool(false),
		"files_changed":         value.List(nil),
		"build_date":            value.Int(1700000000),
		"pushlog_id":            value.String("1"),
		"pushdate":              value.Int(1700000000),
	}
}

func TestNewValid(t *testing.T) {
	p, err := parameters.New(validValues())
	require.NoError(t, err)
	assert.Equal(t, "myproject", p.String("project"))
	assert.True(t, p.Bool("optimize_target_tasks"))
}

func TestNewMissingRequiredField(t *testing.T) {
	values := validValues()
	delete(values, "base_rev")
	_, err := parameters.New(values)
	require.Error(t, err)
	var perr *taskerrors.ParameterError
	require.ErrorAs(t, err, &perr)
}

func TestRepositoryTypeEnum(t *testing.T) {
	values := validValues()
	values["repository_type"] = value.String("svn")
	_, err := parameters.New(values)
	require.Error(t, err)
}

func TestStringListAccessors(t *testing.T) {
	values := validValues()
	values["files_changed"] = value.List([]value.Value{value.String("a.go"), value.String("b.go")})
	p, err := parameters.New(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, p.StringList("files_changed"))
}

func TestExistingTasks(t *testing.T) {
	values := validValues()
	values["existing_tasks"] = value.Map(map[string]value.Value{
		"build-linux": value.String("task-id-1"),
	})
	p, err := parameters.New(values)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"build-linux": "task-id-1"}, p.ExistingTasks())
}

func TestIsTryByProjectName(t *testing.T) {
	values := validValues()
	values["project"] = value.String("try")
	p, err := parameters.New(values)
	require.NoError(t, err)
	assert.True(t, p.IsTry())
}

func TestIsTryByTasksFor(t *testing.T) {
	values := validValues()
	values["tasks_for"] = value.String("github-pull-request")
	p, err := parameters.New(values)
	require.NoError(t, err)
	assert.True(t, p.IsTry())
}

func TestIsTryFalse(t *testing.T) {
	p, err := parameters.New(validValues())
	require.NoError(t, err)
	assert.False(t, p.IsTry())
}

func TestAllRoundTripsForKeyedByContext(t *testing.T) {
	p, err := parameters.New(validValues())
	require.NoError(t, err)
	all := p.All()
	assert.Equal(t, "3", all["level"].String())
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, parameters.Source{TaskID: "abc"}, parameters.ParseSource("task-id=abc"))
	assert.Equal(t, parameters.Source{Project: "myproject"}, parameters.ParseSource("project=myproject"))
	assert.Equal(t, parameters.Source{Index: "a.b.c"}, parameters.ParseSource("index=a.b.c"))
	assert.Equal(t, parameters.Source{Path: "params.yml"}, parameters.ParseSource("params.yml"))
}
