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

import (
	"context"
	"fmt"

	"github.com/taskcluster/taskgraph/pkg/schema"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// routeKeys maps each recipient type to the field carrying its address,
// mirroring notify.py's _route_keys.
var routeKeys = map[string]string{
	"email":         "address",
	"matrix-room":   "room-id",
	"pulse":         "routing-key",
	"slack-channel": "channel-id",
}

// Notify implements the notify built-in transform: it validates each
// recipient's type is recognized, resolves any by-project/by-level
// conditional fields against Parameters, and appends one
// "notify.<type>.<key>.<status>" route per recipient.
func Notify(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	notify, ok := stub.Get("notify")
	if !ok {
		out <- stub
		return nil
	}

	recipientsVal, _ := notify.Get("recipients")
	recipients, _ := recipientsVal.AsList()

	label, _ := stub.Get("label")
	labelStr, _ := label.AsString()

	resolveCtx := schema.Context(cfg.Parameters.All())

	var routes []value.Value
	for _, r := range recipients {
		typ, _ := r.Get("type")
		typeStr, ok := typ.AsString()
		if !ok {
			return fmt.Errorf("notify recipient missing \"type\"")
		}
		key, ok := routeKeys[typeStr]
		if !ok {
			return fmt.Errorf("notify: unknown recipient type %q", typeStr)
		}

		addr, ok := r.Get(key)
		if !ok {
			return fmt.Errorf("notify recipient of type %q missing %q", typeStr, key)
		}
		resolved, err := schema.ResolveKeyedBy(addr, fmt.Sprintf("notify.recipients[].%s", key), nil, resolveCtx)
		if err != nil {
			return err
		}
		addrStr, _ := resolved.AsString()

		status := "on-completed"
		if st, ok := r.Get("status-type"); ok {
			if s, ok := st.AsString(); ok {
				status = s
			}
		}
		routes = append(routes, value.String(fmt.Sprintf("notify.%s.%s.%s", typeStr, addrStr, status)))
	}

	m, _ := stub.AsMap()
	delete(m, "notify")
	taskVal, _ := m["task"].AsMap()
	if taskVal == nil {
		taskVal = map[string]value.Value{}
	}
	existingRoutes, _ := taskVal["routes"].AsList()
	taskVal["routes"] = value.List(append(existingRoutes, routes...))
	m["task"] = value.Map(taskVal)

	if labelStr == "" {
		return fmt.Errorf("notify: stub is missing a label")
	}
	out <- value.Map(m)
	return nil
}
