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

package command_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/command"
	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func TestMorphedCommand_DefaultOutputIsSortedLabels(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "hello-a\nhello-b\n", buf.String())
}

func TestFullCommand_JSONOutputIncludesEveryTask(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"full", "--root", root, "--parameters", params, "--json"})

	require.NoError(t, cmd.Execute())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "hello-a")
	assert.Contains(t, decoded, "hello-b")
}

func TestMorphedCommand_TasksFlagFiltersByLabelRegex(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--tasks", "^hello-a$"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "hello-a\n", buf.String())
}

func TestMorphedCommand_ExcludeKeyRemovesDottedPath(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--json", "--exclude-key", "task.workerType"})

	require.NoError(t, cmd.Execute())

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	taskDef, ok := decoded["hello-a"]["task"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, taskDef, "workerType")
}

func TestMorphedCommand_InvalidTasksRegexIsUsageError(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--tasks", "("})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestMorphedCommand_TargetKindNarrowsLoadedKinds(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--target-kind", "hello"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "hello-a")
}

func TestMorphedCommand_MultipleParametersSetsAreLabeled(t *testing.T) {
	root := writeFixtureRepo(t)
	paramsA := writeParametersFile(t, root, "a.yml")
	paramsB := writeParametersFile(t, root, "b.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", paramsA, "--parameters", paramsB})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "=== "+paramsA+" ===")
	assert.Contains(t, out, "=== "+paramsB+" ===")
}
