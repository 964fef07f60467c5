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

// Package registry implements write-once, process-wide registries:
// optimization strategies, loaders, morphs, target-tasks-methods, filters,
// group-by strategies, and run-using implementations are all registered
// once, from package init() functions. A registry accepts registrations
// until Freeze is called on it.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry[T] is a write-once string-keyed map. Registering the same name
// twice panics immediately, failing fast at registration/import time
// rather than at first use.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]T
	frozen  bool
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register adds name -> value. Panics if name is already registered or the
// registry has been frozen.
func (r *Registry[T]) Register(name string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("registry: cannot register %q after Freeze", name))
	}
	if _, ok := r.entries[name]; ok {
		panic(fmt.Sprintf("registry: duplicate registration for %q", name))
	}
	r.entries[name] = v
}

// Freeze marks the registry read-only; subsequent Register calls panic.
// Nothing in the engine calls Freeze, so the registries it uses stay
// writable for the life of the process.
func (r *Registry[T]) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get looks up name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[name]
	return v, ok
}

// MustGet looks up name, panicking if absent — used where the caller has
// already validated the name exists (e.g. schema-validated kind.yml).
func (r *Registry[T]) MustGet(name string) T {
	v, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("registry: no entry for %q", name))
	}
	return v
}

// Names returns all registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
