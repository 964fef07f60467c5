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

// Package schema implements a small data-driven validator for the nested
// mappings that flow through kind.yml, GraphConfig, and Parameters, plus
// keyed-by resolution (see keyedby.go). It deliberately covers only what the
// engine's own config surfaces need: field presence, type, enum, and regex
// constraints, with an explicit Optional/Required marker per field.
package schema

import (
	"fmt"
	"regexp"

	"github.com/taskcluster/taskgraph/pkg/value"
)

// Error is a SchemaError: a validation failure at a checkpoint, reporting
// the descriptor (dotted path or field name), the offending value, and what
// was expected.
type Error struct {
	Descriptor string
	Value      value.Value
	Expected   string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("schema error at %q: %s", e.Descriptor, e.Message)
	}
	return fmt.Sprintf("schema error at %q: expected %s, got %s", e.Descriptor, e.Expected, e.Value)
}

// Kind constrains the allowed shape of a field's leaf value.
type Kind int

const (
	Any Kind = iota
	StringKind
	IntKind
	BoolKind
	ListKind
	MapKind
)

// Field describes one field of an Object schema.
type Field struct {
	Name     string
	Required bool
	Kind     Kind
	// Enum, if non-empty, restricts a StringKind field to one of these values.
	Enum []string
	// Pattern, if set, is matched against a StringKind field.
	Pattern *regexp.Regexp
	// Elem describes the element type of a ListKind field.
	Elem *Field
	// Object describes the nested shape of a MapKind field. Nil means any map.
	Object *Object
	// KeyedBy lists the attribute names this field may be conditioned on via
	// `optionally_keyed_by`; the field's Kind/Enum/Pattern still constrain
	// the leaf type of each resolved arm.
	KeyedBy []string
}

// Object is a schema for a string-keyed mapping.
type Object struct {
	Fields []Field
	// AllowExtra permits keys not named in Fields (GraphConfig and Repository
	// configs both allow project-specific extra keys).
	AllowExtra bool
}

func (o *Object) field(name string) (Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks v (which must be a map) against o, returning the first
// violation found as a *Error.
func (o *Object) Validate(descriptor string, v value.Value) error {
	m, ok := v.AsMap()
	if !ok {
		return &Error{Descriptor: descriptor, Value: v, Expected: "object"}
	}

	for _, f := range o.Fields {
		fv, present := m[f.Name]
		if !present {
			if f.Required {
				return &Error{Descriptor: descriptor + "." + f.Name, Message: "required field is missing"}
			}
			continue
		}
		if err := f.validate(descriptor+"."+f.Name, fv); err != nil {
			return err
		}
	}

	if !o.AllowExtra {
		for k := range m {
			if _, ok := o.field(k); !ok {
				return &Error{Descriptor: descriptor + "." + k, Message: "unknown field"}
			}
		}
	}
	return nil
}

func (f *Field) validate(descriptor string, v value.Value) error {
	if len(f.KeyedBy) > 0 && IsKeyedBy(v) {
		// Leaf type is checked at resolution time, once the by-<attr> value
		// has collapsed to a concrete arm; structural validity (a proper
		// by-<attr> shape) is all that's checked here.
		return nil
	}
	return validateLeaf(descriptor, *f, v)
}

func validateLeaf(descriptor string, f Field, v value.Value) error {
	switch f.Kind {
	case Any:
		return nil
	case StringKind:
		s, ok := v.AsString()
		if !ok {
			return &Error{Descriptor: descriptor, Value: v, Expected: "string"}
		}
		if len(f.Enum) > 0 && !containsString(f.Enum, s) {
			return &Error{Descriptor: descriptor, Value: v, Expected: fmt.Sprintf("one of %v", f.Enum)}
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			return &Error{Descriptor: descriptor, Value: v, Expected: fmt.Sprintf("match %s", f.Pattern.String())}
		}
		return nil
	case IntKind:
		if _, ok := v.AsInt(); !ok {
			return &Error{Descriptor: descriptor, Value: v, Expected: "int"}
		}
		return nil
	case BoolKind:
		if _, ok := v.AsBool(); !ok {
			return &Error{Descriptor: descriptor, Value: v, Expected: "bool"}
		}
		return nil
	case ListKind:
		list, ok := v.AsList()
		if !ok {
			return &Error{Descriptor: descriptor, Value: v, Expected: "list"}
		}
		if f.Elem != nil {
			for i, e := range list {
				if err := f.Elem.validate(fmt.Sprintf("%s[%d]", descriptor, i), e); err != nil {
					return err
				}
			}
		}
		return nil
	case MapKind:
		if !v.IsMap() {
			return &Error{Descriptor: descriptor, Value: v, Expected: "object"}
		}
		if f.Object != nil {
			return f.Object.Validate(descriptor, v)
		}
		return nil
	default:
		return nil
	}
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// OptionallyKeyedBy is a convenience constructor for a Field accepting
// either a leaf of the given kind or a `by-<attr>` conditional over any of
// attrs, mirroring util.schema.optionally_keyed_by.
func OptionallyKeyedBy(attrs []string, leaf Field) Field {
	leaf.KeyedBy = attrs
	return leaf
}
