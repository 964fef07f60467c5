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

package optimize

// Decision records what happened to a label during one optimization pass.
type Decision string

const (
	DecisionKept     Decision = "kept"
	DecisionRemoved  Decision = "removed"
	DecisionReplaced Decision = "replaced"
)

// LogEntry is one structured record of an optimizer decision: which label,
// what happened to it, and (for a removal/replacement) which strategy
// decided it.
type LogEntry struct {
	Label             string
	Decision          Decision
	Strategy          string
	ReplacementTaskID string
}

// Log is the full ordered record of a single Run.
type Log []LogEntry

// CountRemoved returns the number of labels removed.
func (l Log) CountRemoved() int {
	n := 0
	for _, e := range l {
		if e.Decision == DecisionRemoved {
			n++
		}
	}
	return n
}

// CountReplaced returns the number of labels replaced by an existing
// task-id.
func (l Log) CountReplaced() int {
	n := 0
	for _, e := range l {
		if e.Decision == DecisionReplaced {
			n++
		}
	}
	return n
}
