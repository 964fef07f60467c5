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

package generator

import (
	"errors"
	"os"
	"sort"

	"github.com/taskcluster/taskgraph/pkg/kind"
)

// readDirNames lists the immediate subdirectory names of dir, sorted, for
// the no-target-kinds case where every kind under kinds/ is loaded.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// isErrNotFound reports whether err is a *kind.ErrNotFound, writing it into
// target when so.
func isErrNotFound(err error, target **kind.ErrNotFound) bool {
	return errors.As(err, target)
}
