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

// Package builtin implements the built-in transform stages every kind can
// use: task-context, matrix, chunking, from-deps, notify, cached-tasks,
// run, and task.
package builtin

import (
	"strconv"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/value"
)

// DeepGet resolves a dotted path ("worker.env.FOO") against v, mirroring
// util.templates.deep_get. Returns ok=false if any segment is missing.
func DeepGet(v value.Value, path string) (value.Value, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		next, ok := cur.Get(seg)
		if !ok {
			return value.Value{}, false
		}
		cur = next
	}
	return cur, true
}

// DeepSet sets a dotted path on a map value, creating intermediate maps as
// needed, and returns the updated value (v is not mutated in place, since
// value.Value is immutable).
func DeepSet(v value.Value, path string, newVal value.Value) value.Value {
	segs := strings.Split(path, ".")
	return deepSet(v, segs, newVal)
}

func deepSet(v value.Value, segs []string, newVal value.Value) value.Value {
	m, ok := v.AsMap()
	if !ok {
		m = map[string]value.Value{}
	}
	if len(segs) == 1 {
		m[segs[0]] = newVal
		return value.Map(m)
	}
	child, ok := m[segs[0]]
	if !ok {
		child = value.Map(nil)
	}
	m[segs[0]] = deepSet(child, segs[1:], newVal)
	return value.Map(m)
}

// renderScalar converts a value to the string used to fill a "{{key}}"
// placeholder: strings pass through, everything else stringifies the same
// way value.Value.String does.
func renderScalar(v value.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if i, ok := v.AsInt(); ok {
		return strconv.FormatInt(i, 10)
	}
	if b, ok := v.AsBool(); ok {
		return strconv.FormatBool(b)
	}
	return v.String()
}

// substitutePlaceholders replaces every "{{key}}" occurrence in s with
// subs[key]'s rendered form; unknown keys are left untouched.
func substitutePlaceholders(s string, subs map[string]value.Value) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start
		key := strings.TrimSpace(s[start+2 : end])
		b.WriteString(s[:start])
		if v, ok := subs[key]; ok {
			b.WriteString(renderScalar(v))
		} else {
			b.WriteString(s[start : end+2])
		}
		s = s[end+2:]
	}
	return b.String()
}

// SubstituteFields applies substitutePlaceholders to every named dotted
// field of stub that resolves to a string, mirroring
// util.templates.substitute_task_fields.
func SubstituteFields(stub value.Value, fields []string, subs map[string]value.Value) value.Value {
	out := stub
	for _, f := range fields {
		cur, ok := DeepGet(out, f)
		if !ok {
			continue
		}
		s, ok := cur.AsString()
		if !ok {
			continue
		}
		out = DeepSet(out, f, value.String(substitutePlaceholders(s, subs)))
	}
	return out
}
