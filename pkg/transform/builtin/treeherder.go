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
	"fmt"
	"regexp"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

const treeherderRouteRoot = "tc-treeherder"

var joinedSymbolRE = regexp.MustCompile(`^([^(]*)\(([^)]*)\)$`)

// splitSymbol splits a symbol expressed as "grp(sym)" into its two parts.
// If no group is given, the returned group is "?".
func splitSymbol(symbol string) (group, sym string, err error) {
	if !strings.Contains(symbol, "(") {
		return "?", symbol, nil
	}
	m := joinedSymbolRE.FindStringSubmatch(symbol)
	if m == nil {
		return "", "", fmt.Errorf("%q is not a valid treeherder symbol", symbol)
	}
	return m[1], m[2], nil
}

// treeherderKindClass buckets a kind name into treeherder's three coarse
// job classifications, by substring match on the kind name itself.
func treeherderKindClass(kind string) string {
	switch {
	case strings.Contains(kind, "build"):
		return "build"
	case strings.Contains(kind, "test"):
		return "test"
	default:
		return "other"
	}
}

// treeherderSymbolFromKind derives a default symbol from kind by
// uppercasing the first letter of each hyphen-separated word, e.g.
// "apple-banana" -> "AB".
func treeherderSymbolFromKind(kind string) string {
	var b strings.Builder
	for _, part := range strings.Split(kind, "-") {
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
		}
	}
	return b.String()
}

// isTreeherderDisabled reports whether a task's `treeherder` stanza is the
// literal boolean false, the only way to opt a task out.
func isTreeherderDisabled(th value.Value) bool {
	b, ok := th.AsBool()
	return ok && !b
}

// buildTreeherderExtra resolves a task's `treeherder` stanza (either the
// bare boolean true, or a map overriding platform/symbol/tier/kind) into
// the extra.treeherder object the platform's treeherder ingestion expects,
// plus the tc-treeherder route the task should carry.
func buildTreeherderExtra(cfg *transform.Config, th value.Value, label string) (map[string]value.Value, string, error) {
	platform := "default/opt"
	tier := int64(1)
	jobKind := treeherderKindClass(cfg.Kind)
	symbol := treeherderSymbolFromKind(cfg.Kind)

	if m, ok := th.AsMap(); ok {
		if v, ok := m["platform"]; ok {
			platform, _ = v.AsString()
		}
		if v, ok := m["tier"]; ok {
			tier, _ = v.AsInt()
		}
		if v, ok := m["kind"]; ok {
			jobKind, _ = v.AsString()
		}
		if v, ok := m["symbol"]; ok {
			symbol, _ = v.AsString()
		}
	}

	machinePlatform, collection, ok := strings.Cut(platform, "/")
	if !ok {
		collection = "opt"
	}

	groupSymbol, symbolName, err := splitSymbol(symbol)
	if err != nil {
		return nil, "", fmt.Errorf("task %q: %w", label, err)
	}
	if len(symbolName) > 25 || len(groupSymbol) > 25 {
		return nil, "", fmt.Errorf("task %q: treeherder group and symbol names must not be longer than 25 characters: %s", label, symbol)
	}

	treeherder := map[string]value.Value{
		"machine":    value.Map(map[string]value.Value{"platform": value.String(machinePlatform)}),
		"collection": value.Map(map[string]value.Value{collection: value.Bool(true)}),
		"symbol":     value.String(symbolName),
		"jobKind":    value.String(jobKind),
		"tier":       value.Int(tier),
	}
	if groupSymbol != "?" {
		groupNames := cfg.GraphConfig.TreeherderGroupNames()
		name, ok := groupNames[groupSymbol]
		if !ok {
			return nil, "", fmt.Errorf("task %q: treeherder group %q has no name; add it to config.yml's treeherder.group-names", label, groupSymbol)
		}
		treeherder["groupSymbol"] = value.String(groupSymbol)
		treeherder["groupName"] = value.String(name)
	}

	tasksFor := cfg.Parameters.String("tasks_for")
	project := cfg.Parameters.String("project")
	if strings.HasPrefix(tasksFor, "github-pull-request") {
		base := cfg.Parameters.String("base_repository")
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[i+1:]
		}
		project = strings.TrimSuffix(base, ".git") + "-pr"
	}
	route := fmt.Sprintf("%s.v2.%s.%s.%s", treeherderRouteRoot, project, cfg.Parameters.String("head_rev"), cfg.Parameters.String("pushlog_id"))

	return treeherder, route, nil
}
