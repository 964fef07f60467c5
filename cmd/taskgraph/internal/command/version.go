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

package command

import (
	"github.com/spf13/cobra"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
)

func newVersionCommand(stream *view.Stream) *cobra.Command {
	return &cobra.Command{
		Use:          "version",
		Short:        "print the taskgraph binary's version",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream.PrintVersion()
			return nil
		},
	}
}
