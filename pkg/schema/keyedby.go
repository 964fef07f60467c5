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

package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/value"
)

const byPrefix = "by-"

// asKeyedBy recognizes the raw-map shape `{"by-<attr>": {matcher: result, ...}}`
// in addition to a value already constructed as value.KindKeyedBy, mirroring
// voluptuous's `optionally_keyed_by` validator which accepts either form on
// the wire.
func asKeyedBy(v value.Value) (value.KeyedBy, bool) {
	if kb, ok := v.AsKeyedBy(); ok {
		return kb, true
	}
	m, ok := v.AsMap()
	if !ok || len(m) != 1 {
		return value.KeyedBy{}, false
	}
	for k, arms := range m {
		if !strings.HasPrefix(k, byPrefix) {
			return value.KeyedBy{}, false
		}
		attr := strings.TrimPrefix(k, byPrefix)
		armsMap, ok := arms.AsMap()
		if !ok {
			return value.KeyedBy{}, false
		}
		kb := value.KeyedBy{Attr: attr}
		for matcher, result := range armsMap {
			if matcher == "default" {
				r := result
				kb.Default = &r
				continue
			}
			kb.Cases = append(kb.Cases, value.KeyedByCase{Matcher: matcher, Result: result})
		}
		return kb, true
	}
	return value.KeyedBy{}, false
}

// IsKeyedBy reports whether v is a by-<attr> conditional, in either its
// structured or raw-map form.
func IsKeyedBy(v value.Value) bool {
	_, ok := asKeyedBy(v)
	return ok
}

// Context supplies the attribute values consulted when resolving a by-<attr>
// conditional: an attribute present in ctx is preferred over the same
// attribute found in container.
type Context map[string]value.Value

// ResolveKeyedBy resolves v, which may be a nested chain of by-<attr>
// conditionals, against ctx and container, innermost-first (i.e. the
// outermost by-* is evaluated first here, but since arms may themselves be
// by-* values, resolution recurses until a non-by-* leaf is reached — which
// is what "innermost-first" means operationally: the chain collapses from
// the outside in, arm by arm, until nothing by-* remains).
//
// descriptor is used only to build the SchemaError on failure.
func ResolveKeyedBy(v value.Value, descriptor string, container, ctx Context) (value.Value, error) {
	kb, ok := asKeyedBy(v)
	if !ok {
		return v, nil
	}

	attrVal, found := ctx[kb.Attr]
	if !found {
		attrVal, found = container[kb.Attr]
	}
	if !found {
		return value.Value{}, &Error{
			Descriptor: descriptor,
			Message:    fmt.Sprintf("cannot resolve `by-%s`: attribute %q is not available", kb.Attr, kb.Attr),
		}
	}
	attrStr, ok := attrVal.AsString()
	if !ok {
		attrStr = attrVal.String()
	}

	result, err := matchKeyedBy(kb, attrStr, descriptor)
	if err != nil {
		return value.Value{}, err
	}
	return ResolveKeyedBy(result, descriptor, container, ctx)
}

func matchKeyedBy(kb value.KeyedBy, attrStr, descriptor string) (value.Value, error) {
	// Exact match first.
	for _, c := range kb.Cases {
		if c.Matcher == attrStr {
			return c.Result, nil
		}
	}
	// Then each remaining key as a regex against the whole value.
	for _, c := range kb.Cases {
		re, err := regexp.Compile("^(?:" + c.Matcher + ")$")
		if err != nil {
			continue
		}
		if re.MatchString(attrStr) {
			return c.Result, nil
		}
	}
	if kb.Default != nil {
		return *kb.Default, nil
	}
	return value.Value{}, &Error{
		Descriptor: descriptor,
		Message: fmt.Sprintf(
			"no arm of `by-%s` matches %q and no default is given", kb.Attr, attrStr,
		),
	}
}
