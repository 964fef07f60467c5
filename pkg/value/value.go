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

// Package value defines the closed dynamic-value domain shared by task
// attributes, parameters, and schema descriptors: strings, integers,
// booleans, lists and string-keyed maps of further values. It is the single
// representation of "whatever came out of a YAML or JSON document" used
// throughout the engine, so that attributes, parameters, and keyed-by
// descriptors don't each invent their own flavor of interface{}.
package value

import (
	"fmt"
	"sort"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindBool
	KindList
	KindMap
	// KindKeyedBy represents a `by-<attr>: {matcher: result, ..., default: result}`
	// conditional value, a recursive tagged-variant type whose arms may
	// themselves be keyed-by values.
	KindKeyedBy
)

// KeyedByCase is one `<matcher>: <result>` arm of a by-<attr> mapping.
// Matcher is either an exact literal or (failing every exact match) a regex,
// per the precedence rule in resolve_keyed_by.
type KeyedByCase struct {
	Matcher string
	Result  Value
}

// KeyedBy is the parsed form of:
//
//	by-<attr>:
//	   <value1>: <result>
//	   <pattern2>: <result>
//	   default: <result>   # optional
type KeyedBy struct {
	Attr    string
	Cases   []KeyedByCase
	Default *Value
}

// Value is an immutable, dynamically-typed value drawn from YAML/JSON
// documents (kind.yml, parameters files, task attributes).
type Value struct {
	kind    Kind
	str     string
	i       int64
	b       bool
	list    []Value
	m       map[string]Value
	keyedBy *KeyedBy
}

// FromKeyedBy wraps a KeyedBy descriptor as a Value.
func FromKeyedBy(kb KeyedBy) Value {
	return Value{kind: KindKeyedBy, keyedBy: &kb}
}

// AsKeyedBy returns the KeyedBy descriptor, or ok=false if v is not one.
func (v Value) AsKeyedBy() (KeyedBy, bool) {
	if v.kind != KindKeyedBy || v.keyedBy == nil {
		return KeyedBy{}, false
	}
	return *v.keyedBy, true
}

// IsKeyedBy reports whether v is a by-<attr> conditional.
func (v Value) IsKeyedBy() bool { return v.kind == KindKeyedBy }

func Null() Value            { return Value{kind: KindNull} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func List(vs []Value) Value  { return Value{kind: KindList, list: vs} }

func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsMap() bool    { return v.kind == KindMap }
func (v Value) IsList() bool   { return v.kind == KindList }

// AsString returns the string value, or ok=false if v is not a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsList returns the underlying slice; callers must not mutate it.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns a defensive copy of the underlying map.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	cp := make(map[string]Value, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp, true
}

// Get looks up a key in a map value. Returns Null, false if v is not a map
// or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Keys returns the sorted keys of a map value, or nil if v is not a map.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromAny converts a decoded YAML/JSON tree (as produced by gopkg.in/yaml.v3
// or encoding/json, i.e. map[string]any / []any / string / int / bool / nil)
// into a Value tree.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		// YAML/JSON decoders hand back float64 for bare numbers; treat whole
		// numbers as ints since the schema domain here has no float leaf.
		return Int(int64(t))
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return List(out)
	case []Value:
		return List(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromAny(e)
		}
		return Map(out)
	case map[any]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = FromAny(e)
		}
		return Map(out)
	case Value:
		return t
	default:
		return String(fmt.Sprint(t))
	}
}

// ToAny converts a Value back into plain Go data, the inverse of FromAny,
// suitable for JSON/YAML marshaling.
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = ToAny(e)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindInt:
		return a.i == b.i
	case KindBool:
		return a.b == b.b
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a human-readable form, used in error messages.
func (v Value) String() string {
	return fmt.Sprint(ToAny(v))
}
