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

package graph

import (
	"errors"
	"fmt"
)

// CycleError is returned by VisitPostorder when the graph contains a cycle.
// Labels lists the nodes that could not be ordered (the leftover cyclic
// component), not necessarily the minimal cycle.
type CycleError struct {
	Labels []Label
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph contains a cycle involving: %v", e.Labels)
}

// AsCycleError returns the *CycleError in err's chain, or nil.
func AsCycleError(err error) *CycleError {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
