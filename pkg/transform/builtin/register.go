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

package builtin

import "github.com/taskcluster/taskgraph/pkg/kind"

// init registers every built-in transform under the name kind.yml's
// `transforms:` list refers to it by, the Go analogue of the Python
// implementation's "module:attr" dotted-path resolution.
func init() {
	kind.TransformRegistry.Register("task-context", TaskContext)
	kind.TransformRegistry.Register("matrix", Matrix)
	kind.TransformRegistry.Register("chunking", Chunking)
	kind.TransformRegistry.Register("from-deps", FromDeps)
	kind.TransformRegistry.Register("notify", Notify)
	kind.TransformRegistry.Register("run", Run)
	kind.TransformRegistry.Register("task", Task)

	kind.CachedTasksFunc = CachedTasks
}
