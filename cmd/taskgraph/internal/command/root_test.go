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

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/command"
	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func TestNewRootCommand(t *testing.T) {
	root := command.NewRootCommand(view.NewStream(&bytes.Buffer{}))

	assert.Equal(t, "taskgraph", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
	assert.True(t, root.CompletionOptions.DisableDefaultCmd)
}

func TestNewRootCommand_HasEveryPhaseSubcommand(t *testing.T) {
	root := command.NewRootCommand(view.NewStream(&bytes.Buffer{}))

	for _, name := range []string{"full", "target", "target-graph", "optimized", "morphed", "decision", "version"} {
		cmd, _, err := root.Find([]string{name})
		assert.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestNewRootCommand_HasGlobalFlags(t *testing.T) {
	root := command.NewRootCommand(view.NewStream(&bytes.Buffer{}))

	for _, name := range []string{"root", "parameters", "target-kind", "tasks", "json", "exclude-key", "fast", "no-verify", "diff", "decision-task-id", "trust-domain", "platform-url", "log-level", "log-format", "max-concurrent"} {
		flag := root.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "--%s should be registered", name)
	}
}

func TestVersionCommand(t *testing.T) {
	buf := new(bytes.Buffer)
	root := command.NewRootCommand(view.NewStream(buf))
	root.SetArgs([]string{"version"})

	err := root.Execute()
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "taskgraph version")
}
