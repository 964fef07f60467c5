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
	"strings"

	"github.com/taskcluster/taskgraph/pkg/schema"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// resolveWorkerType resolves a "<alias>/level" worker-type reference
// against GraphConfig.WorkerAliases, returning the concrete
// provisionerId/workerType pair, mirroring util.workertypes.get_worker_type.
func resolveWorkerType(cfg *transform.Config, alias string, level string) (string, string, error) {
	aliases := cfg.GraphConfig.WorkerAliases()
	wa, ok := aliases[alias]
	if !ok {
		// Not an alias: treat as a literal "provisionerId/workerType" pair.
		if prov, wt, found := strings.Cut(alias, "/"); found {
			return prov, wt, nil
		}
		return alias, alias, nil
	}
	resolveCtx := schema.Context{"level": value.String(level)}
	prov, err := schema.ResolveKeyedBy(wa.Provisioner, "workers.aliases."+alias+".provisioner", nil, resolveCtx)
	if err != nil {
		return "", "", err
	}
	wt, err := schema.ResolveKeyedBy(wa.WorkerType, "workers.aliases."+alias+".worker-type", nil, resolveCtx)
	if err != nil {
		return "", "", err
	}
	provisionerID, _ := prov.AsString()
	workerType, _ := wt.AsString()
	return provisionerID, workerType, nil
}

// Task implements the task built-in transform: the final stage of every
// kind's pipeline, translating the high-level task description into the
// platform wire format (provisionerId/workerType, routes, scopes, deadline,
// expires, priority, retries, metadata, extra, tags, treeherder). The
// worker's payload itself is passed through under "payload" rather than
// built per-implementation, since payload construction is
// worker-implementation-specific and out of this transform's scope.
func Task(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	m, _ := stub.AsMap()

	label, _ := m["label"].AsString()
	if label == "" {
		return fmt.Errorf("task stub is missing a label")
	}
	description, _ := m["description"].AsString()

	level := cfg.Parameters.String("level")
	project := cfg.Parameters.String("project")
	owner := cfg.Parameters.String("owner")

	workerTypeVal, ok := m["worker-type"]
	if !ok {
		return fmt.Errorf("task %q is missing worker-type", label)
	}
	workerTypeRef, _ := workerTypeVal.AsString()
	provisionerID, workerType, err := resolveWorkerType(cfg, workerTypeRef, level)
	if err != nil {
		return fmt.Errorf("task %q: %w", label, err)
	}

	routes, _ := m["routes"].AsList()
	scopes, _ := m["scopes"].AsList()

	expiresAfter := "1 year"
	if cfg.Parameters.IsTry() {
		expiresAfter = "28 days"
	}
	if v, ok := m["expires-after"]; ok {
		expiresAfter, _ = v.AsString()
	}

	deadlineAfter := "1 day"
	if v, ok := m["deadline-after"]; ok {
		deadlineAfter, _ = v.AsString()
	}

	retries := int64(5)
	if v, ok := m["retries"]; ok {
		if r, ok := v.AsInt(); ok {
			retries = r
		}
	}

	priority := value.String("low")
	if v, ok := m["priority"]; ok {
		priority = v
	} else if tp := cfg.GraphConfig.TaskPriority(); !tp.IsNull() {
		resolved, err := schema.ResolveKeyedBy(tp, "task-priority", nil, schema.Context{
			"project": value.String(project),
			"level":   value.String(level),
		})
		if err == nil {
			priority = resolved
		}
	}

	extra, _ := m["extra"].AsMap()
	if extra == nil {
		extra = map[string]value.Value{}
	}

	tags, _ := m["tags"].AsMap()
	if tags == nil {
		tags = map[string]value.Value{}
	}
	tags["createdForUser"] = value.String(owner)
	tags["kind"] = value.String(cfg.Kind)
	tags["label"] = value.String(label)
	tags["project"] = value.String(project)
	tags["trust-domain"] = value.String(cfg.GraphConfig.TrustDomain())

	dependencies, _ := m["dependencies"].AsMap()

	if th, ok := m["treeherder"]; ok && !isTreeherderDisabled(th) {
		treeherder, route, err := buildTreeherderExtra(cfg, th, label)
		if err != nil {
			return err
		}
		extra["treeherder"] = value.Map(treeherder)
		routes = append(routes, value.String(route))
	}

	taskDef := map[string]value.Value{
		"provisionerId": value.String(provisionerID),
		"workerType":    value.String(workerType),
		"routes":        value.List(routes),
		"scopes":        value.List(scopes),
		"deadline":      value.String(deadlineAfter),
		"expires":       value.String(expiresAfter),
		"priority":      priority,
		"retries":       value.Int(retries),
		"metadata": value.Map(map[string]value.Value{
			"description": value.String(description),
			"name":        value.String(label),
			"owner":       value.String(owner),
		}),
		"extra": value.Map(extra),
		"tags":  value.Map(tags),
	}
	if payload, ok := m["payload"]; ok {
		taskDef["payload"] = payload
	}
	if requires, ok := m["requires"]; ok {
		taskDef["requires"] = requires
	}

	result := map[string]value.Value{
		"label":          value.String(label),
		"description":    value.String(description),
		"attributes":     m["attributes"],
		"task":           value.Map(taskDef),
		"dependencies":   value.Map(dependencies),
		"if-dependencies": m["if-dependencies"],
		"optimization":   m["optimization"],
	}
	if sd, ok := m["soft-dependencies"]; ok {
		result["soft-dependencies"] = sd
	}
	out <- value.Map(result)
	return nil
}
