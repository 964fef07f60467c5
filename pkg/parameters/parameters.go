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

// Package parameters implements the immutable, schema-validated key->value
// bundle describing the triggering event: which commit, which repository,
// which tasks to target, and so on.
package parameters

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/taskcluster/taskgraph/pkg/schema"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// RequiredFields is the core parameter schema, kept sorted.
var RequiredFields = []string{
	"base_repository",
	"base_rev",
	"base_ref",
	"build_date",
	"build_number",
	"do_not_optimize",
	"enable_always_target",
	"existing_tasks",
	"files_changed",
	"filters",
	"head_ref",
	"head_repository",
	"head_rev",
	"level",
	"next_version",
	"optimize_strategies",
	"optimize_target_tasks",
	"owner",
	"project",
	"pushdate",
	"pushlog_id",
	"repository_type",
	"target_tasks_method",
	"tasks_for",
	"version",
}

func init() {
	sort.Strings(RequiredFields)
}

// coreObject is the base schema every Parameters must satisfy, composed
// with any project extension registered via ExtendSchema.
func coreObject() *schema.Object {
	strElem := &schema.Field{Kind: schema.StringKind}

	fields := []schema.Field{
		{Name: "base_repository", Required: true, Kind: schema.StringKind},
		{Name: "base_rev", Required: true, Kind: schema.StringKind},
		{Name: "base_ref", Required: true, Kind: schema.StringKind},
		{Name: "head_repository", Required: true, Kind: schema.StringKind},
		{Name: "head_rev", Required: true, Kind: schema.StringKind},
		{Name: "head_ref", Required: true, Kind: schema.StringKind},
		{Name: "owner", Required: true, Kind: schema.StringKind},
		{Name: "project", Required: true, Kind: schema.StringKind},
		{Name: "level", Required: true, Kind: schema.StringKind},
		{Name: "repository_type", Required: true, Kind: schema.StringKind, Enum: []string{"git", "hg"}},
		{Name: "tasks_for", Required: true, Kind: schema.StringKind},
		{Name: "target_tasks_method", Required: true, Kind: schema.StringKind},
		{Name: "filters", Required: true, Kind: schema.ListKind, Elem: strElem},
		{Name: "optimize_target_tasks", Required: true, Kind: schema.BoolKind},
		{Name: "optimize_strategies", Required: false, Kind: schema.StringKind},
		{Name: "do_not_optimize", Required: true, Kind: schema.ListKind, Elem: strElem},
		{Name: "existing_tasks", Required: true, Kind: schema.MapKind},
		{Name: "enable_always_target", Required: true, Kind: schema.Any},
		{Name: "files_changed", Required: true, Kind: schema.ListKind, Elem: strElem},
		{Name: "build_date", Required: true, Kind: schema.IntKind},
		{Name: "build_number", Required: false, Kind: schema.IntKind},
		{Name: "pushlog_id", Required: true, Kind: schema.StringKind},
		{Name: "pushdate", Required: true, Kind: schema.IntKind},
		{Name: "version", Required: false, Kind: schema.StringKind},
		{Name: "next_version", Required: false, Kind: schema.StringKind},
	}
	return &schema.Object{Fields: fields, AllowExtra: true}
}

// Parameters is an immutable, schema-validated key->value mapping. Callers
// never see a partially-constructed Parameters: Load/New validate eagerly.
type Parameters struct {
	values map[string]value.Value
}

// projectExtension holds an additional schema a project registered via
// ExtendSchema, composed with the core schema at validation time.
var projectExtension *schema.Object

// ExtendSchema registers additional fields a project's GraphConfig wants to
// require or permit on Parameters. It must be called during the
// registration phase, before any Parameters are constructed; calling it
// twice is a programmer error (panics), matching the write-once discipline
// of pkg/registry.
func ExtendSchema(extra *schema.Object) {
	if projectExtension != nil {
		panic("parameters: ExtendSchema already called")
	}
	projectExtension = extra
}

// New validates values against the composed schema and returns an immutable
// Parameters, or a *taskerrors.ParameterError.
func New(values map[string]value.Value) (*Parameters, error) {
	v := value.Map(values)
	if err := coreObject().Validate("parameters", v); err != nil {
		return nil, &taskerrors.ParameterError{Err: err}
	}
	if projectExtension != nil {
		if err := projectExtension.Validate("parameters", v); err != nil {
			return nil, &taskerrors.ParameterError{Err: err}
		}
	}
	cp := make(map[string]value.Value, len(values))
	for k, val := range values {
		cp[k] = val
	}
	return &Parameters{values: cp}, nil
}

// Get returns the named parameter, erroring like a Python KeyError with the
// taskgraph-specific message from Parameters.__getitem__.
func (p *Parameters) Get(name string) (value.Value, error) {
	v, ok := p.values[name]
	if !ok {
		return value.Value{}, fmt.Errorf("taskgraph parameter %q not found", name)
	}
	return v, nil
}

// MustGet panics if name is absent; used where the schema guarantees
// presence (all Required fields).
func (p *Parameters) MustGet(name string) value.Value {
	v, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// String is a convenience accessor for string-typed parameters.
func (p *Parameters) String(name string) string {
	v := p.MustGet(name)
	s, _ := v.AsString()
	return s
}

// StringList is a convenience accessor for list-of-string parameters such as
// files_changed, filters, and do_not_optimize.
func (p *Parameters) StringList(name string) []string {
	v, ok := p.values[name]
	if !ok {
		return nil
	}
	list, ok := v.AsList()
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Bool is a convenience accessor for bool-typed parameters.
func (p *Parameters) Bool(name string) bool {
	v, ok := p.values[name]
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

// IsTry reports whether this run is against a "try" project or a pull
// request, where optimization and target-task selection are more lenient.
func (p *Parameters) IsTry() bool {
	project := p.String("project")
	matched, _ := regexp.MatchString("try", project)
	return matched || p.String("tasks_for") == "github-pull-request"
}

// ExistingTasks returns the label->task-id seeding map for the optimizer.
func (p *Parameters) ExistingTasks() map[string]string {
	v, ok := p.values["existing_tasks"]
	if !ok {
		return nil
	}
	m, ok := v.AsMap()
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.AsString(); ok {
			out[k] = s
		}
	}
	return out
}

// All returns a defensive copy of every parameter, for use as a
// schema.Context when resolving keyed-by values against Parameters.
func (p *Parameters) All() map[string]value.Value {
	out := make(map[string]value.Value, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
