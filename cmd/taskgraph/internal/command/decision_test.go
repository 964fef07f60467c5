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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/command"
	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func TestDecisionCommand_WritesThreeArtifacts(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")
	outputDir := t.TempDir()

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"decision", "--root", root, "--parameters", params, "--output-dir", outputDir})

	require.NoError(t, cmd.Execute())

	taskGraphRaw, err := os.ReadFile(filepath.Join(outputDir, "task-graph.json"))
	require.NoError(t, err)
	var taskGraph map[string]any
	require.NoError(t, json.Unmarshal(taskGraphRaw, &taskGraph))
	assert.Contains(t, taskGraph, "hello-a")
	assert.Contains(t, taskGraph, "hello-b")

	labelToTaskIDRaw, err := os.ReadFile(filepath.Join(outputDir, "label-to-taskid.json"))
	require.NoError(t, err)
	var labelToTaskID map[string]string
	require.NoError(t, json.Unmarshal(labelToTaskIDRaw, &labelToTaskID))
	assert.Contains(t, labelToTaskID, "hello-a")
	assert.NotEmpty(t, labelToTaskID["hello-a"])

	toRunRaw, err := os.ReadFile(filepath.Join(outputDir, "to-run.json"))
	require.NoError(t, err)
	var toRun []string
	require.NoError(t, json.Unmarshal(toRunRaw, &toRun))
	assert.ElementsMatch(t, []string{"hello-a", "hello-b"}, toRun)
}

func TestDecisionCommand_MultipleParametersSetsGetOwnSubdirectory(t *testing.T) {
	root := writeFixtureRepo(t)
	paramsA := writeParametersFile(t, root, "a.yml")
	paramsB := writeParametersFile(t, root, "b.yml")
	outputDir := t.TempDir()

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"decision", "--root", root, "--parameters", paramsA, "--parameters", paramsB, "--output-dir", outputDir})

	require.NoError(t, cmd.Execute())

	for _, params := range []string{paramsA, paramsB} {
		_, err := os.Stat(filepath.Join(outputDir, sanitizeLabelForTest(params), "task-graph.json"))
		assert.NoError(t, err, "expected task-graph.json under the %s subdirectory", params)
	}
}

// sanitizeLabelForTest mirrors command.sanitizeLabel's replacement of
// anything but [A-Za-z0-9-_] with underscores, without exporting it just
// for this test.
func sanitizeLabelForTest(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
