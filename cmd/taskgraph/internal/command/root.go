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

// Package command implements the taskgraph CLI: thin Cobra plumbing
// around pkg/generator, consuming it exactly as an external caller would.
// It never implements pipeline logic of its own beyond flag parsing,
// output rendering, and the --tasks/--exclude-key/--diff post-processing
// the engine has no notion of.
package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func NewRootCommand(stream *view.Stream) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taskgraph",
		Short:         "Generate a submittable task graph from declarative kind definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	addGlobalFlags(cmd)

	for _, pc := range phaseCommands {
		cmd.AddCommand(newPhaseCommand(stream, pc.use, pc.short, pc.run))
	}
	cmd.AddCommand(newDecisionCommand(stream))
	cmd.AddCommand(newVersionCommand(stream))

	return cmd
}

// Execute runs the CLI to completion, exiting the process with 0 on
// success, 1 on a generation failure, or 2 on invalid usage.
func Execute() {
	stream := view.NewStream(os.Stdout)
	root := NewRootCommand(stream)

	err := root.Execute()
	if err == nil {
		os.Exit(0)
	}

	fmt.Fprintln(os.Stderr, err)
	var genErr *generationError
	if errors.As(err, &genErr) {
		os.Exit(1)
	}
	os.Exit(2)
}
