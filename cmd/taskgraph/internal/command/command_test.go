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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixtureRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yml"), []byte(`
trust-domain: demo
task-priority: low
workers:
  aliases: {}
taskgraph:
  repositories:
    demo:
      name: Demo
`), 0o644))

	dir := filepath.Join(root, "kinds", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kind.yml"), []byte(`
transforms:
  - task
tasks:
  hello-a:
    description: says hello
    worker-type: literal-provisioner/literal-worker
  hello-b:
    description: says hello back
    worker-type: literal-provisioner/literal-worker
    dependencies:
      edge1: hello-a
`), 0o644))
	return root
}

func writeParametersFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(`
base_repository: https://example.invalid/repo
base_rev: a
base_ref: main
head_repository: https://example.invalid/repo
head_rev: b
head_ref: topic
owner: me@example.invalid
project: demo
level: "3"
repository_type: git
tasks_for: github-push
target_tasks_method: all
filters: [all]
optimize_target_tasks: true
do_not_optimize: []
existing_tasks: {}
enable_always_target: false
files_changed: []
build_date: 1700000000
pushlog_id: "1"
pushdate: 1700000000
`), 0o644))
	return path
}
