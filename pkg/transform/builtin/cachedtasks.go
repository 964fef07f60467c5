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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/taskcluster/taskgraph/pkg/graph"
	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// orderByKindDependency topologically sorts the kind's own stubs so that
// tasks that depend on an earlier stub within the same kind (a chain of
// cached tasks within a single kind, e.g. toolchain -> toolchain) are
// processed parent-first, mirroring cached_tasks.py's order_tasks.
func orderByKindDependency(kind string, stubs []transform.Stub) ([]transform.Stub, error) {
	byLabel := map[string]transform.Stub{}
	var labels []graph.Label
	for _, s := range stubs {
		label, _ := s.Get("label")
		l, _ := label.AsString()
		byLabel[l] = s
		labels = append(labels, graph.Label(l))
	}

	prefix := kind + "-"
	var edges []graph.Edge
	for l, s := range byLabel {
		deps, _ := s.Get("dependencies")
		m, _ := deps.AsMap()
		for _, dep := range m {
			depLabel, _ := dep.AsString()
			if strings.HasPrefix(depLabel, prefix) {
				edges = append(edges, graph.Edge{From: graph.Label(l), To: graph.Label(depLabel)})
			}
		}
	}

	g := graph.New(labels, edges)
	order, err := g.VisitPostorder()
	if err != nil {
		return nil, err
	}
	out := make([]transform.Stub, 0, len(order))
	for _, l := range order {
		out = append(out, byLabel[string(l)])
	}
	return out, nil
}

func formatTaskDigest(cached value.Value) string {
	typ, _ := cached.Get("type")
	name, _ := cached.Get("name")
	digest, _ := cached.Get("digest")
	t, _ := typ.AsString()
	n, _ := name.AsString()
	d, _ := digest.AsString()
	return t + "/" + n + "/" + d
}

// cachedTaskIndex mirrors add_optimization's TARGET_CACHE_INDEX format.
func cachedTaskIndex(cachePrefix string, level int, cacheType, cacheName, digest string) string {
	return fmt.Sprintf("%s.cache.level-%d.%s.%s.hash.%s", cachePrefix, level, cacheType, cacheName, digest)
}

// addCacheOptimization rewrites stub to advertise the given digest as a
// cache index key, populating attributes.cached_task and
// optimization.index-search, mirroring util.cached_tasks.add_optimization.
func addCacheOptimization(cfg *transform.Config, stub transform.Stub, cacheType, cacheName string, digestData []string) transform.Stub {
	sorted := append([]string(nil), digestData...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	digest := hex.EncodeToString(sum[:])

	cachePrefix := cfg.GraphConfig.CachedTaskPrefix()
	level, _ := strconv.Atoi(cfg.Parameters.String("level"))
	if level == 0 {
		level = 1
	}

	var routes []string
	for l := 3; l >= level; l-- {
		routes = append(routes, cachedTaskIndex(cachePrefix, l, cacheType, cacheName, digest))
	}

	m, _ := stub.AsMap()
	m["optimization"] = value.Map(map[string]value.Value{
		"index-search": value.List(stringsToValues(routes)),
	})

	cachedTask := value.Map(map[string]value.Value{
		"type":   value.String(cacheType),
		"name":   value.String(cacheName),
		"digest": value.String(digest),
	})
	attrs, _ := m["attributes"].AsMap()
	if attrs == nil {
		attrs = map[string]value.Value{}
	}
	attrs["cached_task"] = cachedTask
	m["attributes"] = value.Map(attrs)

	return value.Map(m)
}

func stringsToValues(ss []string) []value.Value {
	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.String(s)
	}
	return out
}

// CachedTasks implements the cached-tasks built-in transform: it computes a
// content digest over `cache.digest-data` plus the already-resolved digests
// of cache-advertising dependencies, and rewrites the stub to advertise and
// consume that digest as an optimizer index key.
//
// Because Run operates stub-by-stub, CachedTasks is run once per kind over
// the whole batch rather than through Sequence: pkg/kind calls it through
// kind.CachedTasksFunc after the kind's Sequence has run.
func CachedTasks(ctx context.Context, cfg *transform.Config, stubs []transform.Stub) ([]transform.Stub, error) {
	digests := map[string]string{}
	for _, dep := range cfg.KindDependenciesTasks {
		if cached := dep.Attribute("cached_task"); !cached.IsNull() {
			digests[dep.Label] = formatTaskDigest(cached)
		}
	}

	ordered, err := orderByKindDependency(cfg.Kind, stubs)
	if err != nil {
		return nil, err
	}

	out := make([]transform.Stub, 0, len(ordered))
	for _, stub := range ordered {
		cache, ok := stub.Get("cache")
		if !ok {
			out = append(out, stub)
			continue
		}

		deps, _ := stub.Get("dependencies")
		depMap, _ := deps.AsMap()
		var depDigests []string
		for _, p := range depMap {
			pl, _ := p.AsString()
			d, ok := digests[pl]
			if !ok {
				label, _ := stub.Get("label")
				l, _ := label.AsString()
				return nil, fmt.Errorf("cached task %s has uncached parent task: %s", l, pl)
			}
			depDigests = append(depDigests, d)
		}

		digestData, _ := cache.Get("digest-data")
		ddList, _ := digestData.AsList()
		data := make([]string, 0, len(ddList)+len(depDigests))
		for _, d := range ddList {
			if s, ok := d.AsString(); ok {
				data = append(data, s)
			}
		}
		data = append(data, depDigests...)

		cacheType, _ := cache.Get("type")
		cacheName, _ := cache.Get("name")
		ct, _ := cacheType.AsString()
		cn, _ := cacheName.AsString()

		m, _ := stub.AsMap()
		delete(m, "cache")
		stub = value.Map(m)
		stub = addCacheOptimization(cfg, stub, ct, cn, data)

		label, _ := stub.Get("label")
		l, _ := label.AsString()
		attrs, _ := stub.Get("attributes")
		cached, _ := attrs.Get("cached_task")
		digests[l] = formatTaskDigest(cached)

		out = append(out, stub)
	}
	return out, nil
}
