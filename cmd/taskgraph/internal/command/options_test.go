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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/command"
	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func TestMorphedCommand_UnknownLogLevelIsUsageError(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--log-level", "verbose"})

	assert.Error(t, cmd.Execute())
}

func TestMorphedCommand_UnknownLogFormatIsUsageError(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, "--log-format", "xml"})

	assert.Error(t, cmd.Execute())
}

func TestMorphedCommand_FastAndNoVerifyBothSkipVerifications(t *testing.T) {
	root := writeFixtureRepo(t)
	params := writeParametersFile(t, root, "params.yml")

	for _, flag := range []string{"--fast", "--no-verify"} {
		buf := new(bytes.Buffer)
		cmd := command.NewRootCommand(view.NewStream(buf))
		cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", params, flag})

		require.NoError(t, cmd.Execute(), "flag %s", flag)
		assert.Equal(t, "hello-a\nhello-b\n", buf.String(), "flag %s", flag)
	}
}

func TestMorphedCommand_UnknownParametersPathFailsAsGenerationError(t *testing.T) {
	root := writeFixtureRepo(t)

	buf := new(bytes.Buffer)
	cmd := command.NewRootCommand(view.NewStream(buf))
	cmd.SetArgs([]string{"morphed", "--root", root, "--parameters", root + "/does-not-exist.yml"})

	assert.Error(t, cmd.Execute())
}
