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

// Package graphconfig implements the repository-level configuration loaded
// once per invocation from config.yml.
package graphconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskcluster/taskgraph/pkg/schema"
	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/value"
)

func workerAliasObject() *schema.Object {
	return &schema.Object{
		Fields: []schema.Field{
			schema.OptionallyKeyedBy([]string{"level"}, schema.Field{Name: "provisioner", Required: true, Kind: schema.StringKind}),
			{Name: "implementation", Required: true, Kind: schema.StringKind},
			{Name: "os", Required: true, Kind: schema.StringKind},
			schema.OptionallyKeyedBy([]string{"level"}, schema.Field{Name: "worker-type", Required: true, Kind: schema.StringKind}),
		},
	}
}

func workersObject() *schema.Object {
	return &schema.Object{
		Fields: []schema.Field{
			{Name: "aliases", Required: true, Kind: schema.MapKind},
		},
	}
}

func repositoryObject() *schema.Object {
	return &schema.Object{
		AllowExtra: true,
		Fields: []schema.Field{
			{Name: "name", Required: true, Kind: schema.StringKind},
			{Name: "project-regex", Kind: schema.StringKind},
			{Name: "ssh-secret-name", Kind: schema.StringKind},
		},
	}
}

func taskgraphSectionObject() *schema.Object {
	return &schema.Object{
		Fields: []schema.Field{
			{Name: "repositories", Required: true, Kind: schema.MapKind},
			{Name: "register", Kind: schema.StringKind},
			{Name: "decision-parameters", Kind: schema.StringKind},
			{Name: "cached-task-prefix", Kind: schema.StringKind},
			{Name: "cache-pull-requests", Kind: schema.BoolKind},
			{Name: "index-path-regexes", Kind: schema.ListKind, Elem: &schema.Field{Kind: schema.StringKind}},
			{Name: "max-dependencies", Kind: schema.IntKind},
			{Name: "max-routes", Kind: schema.IntKind},
		},
	}
}

func rootObject() *schema.Object {
	return &schema.Object{
		AllowExtra: true,
		Fields: []schema.Field{
			{Name: "trust-domain", Required: true, Kind: schema.StringKind},
			schema.OptionallyKeyedBy([]string{"project", "level"}, schema.Field{Name: "task-priority", Required: true, Kind: schema.StringKind}),
			{Name: "workers", Required: true, Kind: schema.MapKind, Object: workersObject()},
			{Name: "taskgraph", Required: true, Kind: schema.MapKind, Object: taskgraphSectionObject()},
			{Name: "docker-image-kind", Kind: schema.StringKind},
			schema.OptionallyKeyedBy([]string{"project"}, schema.Field{Name: "task-deadline-after", Kind: schema.StringKind}),
			{Name: "task-expires-after", Kind: schema.StringKind},
		},
	}
}

// GraphConfig is the validated, immutable repository configuration.
type GraphConfig struct {
	values  value.Value // always a KindMap
	rootDir string
}

// Load reads and validates config.yml from rootDir, mirroring
// load_graph_config.
func Load(rootDir string) (*GraphConfig, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, &taskerrors.ConfigError{Path: rootDir, Err: err}
	}
	configPath := filepath.Join(abs, "config.yml")
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &taskerrors.ConfigError{Path: configPath, Err: err}
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, &taskerrors.ConfigError{Path: configPath, Err: err}
	}
	return New(decoded, abs)
}

// New validates a decoded config document and wraps it as a GraphConfig.
func New(decoded map[string]any, rootDir string) (*GraphConfig, error) {
	v := value.FromAny(decoded)
	if err := rootObject().Validate("graph-config", v); err != nil {
		return nil, &taskerrors.ConfigError{Path: rootDir, Err: err}
	}
	if err := validateRepositories(v); err != nil {
		return nil, &taskerrors.ConfigError{Path: rootDir, Err: err}
	}
	if err := validateWorkerAliases(v); err != nil {
		return nil, &taskerrors.ConfigError{Path: rootDir, Err: err}
	}
	return &GraphConfig{values: v, rootDir: rootDir}, nil
}

func validateRepositories(v value.Value) error {
	tg, _ := v.Get("taskgraph")
	repos, _ := tg.Get("repositories")
	m, _ := repos.AsMap()
	for name, r := range m {
		if err := repositoryObject().Validate("taskgraph.repositories."+name, r); err != nil {
			return err
		}
	}
	return nil
}

func validateWorkerAliases(v value.Value) error {
	workers, _ := v.Get("workers")
	aliases, _ := workers.Get("aliases")
	m, _ := aliases.AsMap()
	for name, a := range m {
		if err := workerAliasObject().Validate("workers.aliases."+name, a); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves a dotted path such as "taskgraph.cached-task-prefix" against
// the config document, returning ok=false if any segment is absent.
func (g *GraphConfig) Get(path string) (value.Value, bool) {
	cur := g.values
	for _, segment := range strings.Split(path, ".") {
		next, ok := cur.Get(segment)
		if !ok {
			return value.Value{}, false
		}
		cur = next
	}
	return cur, true
}

// GetString resolves a dotted path expected to hold a string, returning def
// if absent or not a string.
func (g *GraphConfig) GetString(path, def string) string {
	v, ok := g.Get(path)
	if !ok {
		return def
	}
	s, ok := v.AsString()
	if !ok {
		return def
	}
	return s
}

// GetInt resolves a dotted path expected to hold an int, returning def if
// absent or not an int.
func (g *GraphConfig) GetInt(path string, def int) int {
	v, ok := g.Get(path)
	if !ok {
		return def
	}
	i, ok := v.AsInt()
	if !ok {
		return def
	}
	return int(i)
}

// TrustDomain is the project's trust domain, used to namespace cache and
// index paths.
func (g *GraphConfig) TrustDomain() string {
	return g.GetString("trust-domain", "")
}

// CachedTaskPrefix defaults to the trust domain when not set explicitly.
func (g *GraphConfig) CachedTaskPrefix() string {
	if prefix := g.GetString("taskgraph.cached-task-prefix", ""); prefix != "" {
		return prefix
	}
	return g.TrustDomain()
}

// DockerImageKind defaults to "docker-image".
func (g *GraphConfig) DockerImageKind() string {
	return g.GetString("docker-image-kind", "docker-image")
}

// MaxRoutes and MaxDependencies resolve the per-task platform limits,
// falling back to the caller-supplied default when the config doesn't
// override them.
func (g *GraphConfig) MaxRoutes(defaultValue int) int {
	return g.GetInt("taskgraph.max-routes", defaultValue)
}

func (g *GraphConfig) MaxDependencies(defaultValue int) int {
	return g.GetInt("taskgraph.max-dependencies", defaultValue)
}

// RegisterPath returns config.yml's taskgraph.register value, the Go
// analogue of taskgraph.register / find_object, or "" if unset. Nothing in
// the engine loads or runs it.
func (g *GraphConfig) RegisterPath() string {
	return g.GetString("taskgraph.register", "")
}

// RootDir is the absolute directory config.yml was loaded from.
func (g *GraphConfig) RootDir() string { return g.rootDir }

// KindsDir is the directory kind.yml files live under.
func (g *GraphConfig) KindsDir() string { return filepath.Join(g.rootDir, "kinds") }

// DockerDir is the directory docker image definitions live under.
func (g *GraphConfig) DockerDir() string { return filepath.Join(g.rootDir, "docker") }

// Repositories returns the configured name->Repository mapping.
func (g *GraphConfig) Repositories() map[string]Repository {
	tg, _ := g.values.Get("taskgraph")
	repos, _ := tg.Get("repositories")
	m, _ := repos.AsMap()
	out := make(map[string]Repository, len(m))
	for name, r := range m {
		rm, _ := r.AsMap()
		repo := Repository{Name: name}
		if v, ok := rm["name"]; ok {
			repo.Name, _ = v.AsString()
		}
		if v, ok := rm["project-regex"]; ok {
			repo.ProjectRegex, _ = v.AsString()
		}
		if v, ok := rm["ssh-secret-name"]; ok {
			repo.SSHSecretName, _ = v.AsString()
		}
		out[name] = repo
	}
	return out
}

// Repository is one entry of taskgraph.repositories.
type Repository struct {
	Name          string
	ProjectRegex  string
	SSHSecretName string
}

// WorkerAlias is one entry of workers.aliases, with Provisioner/WorkerType
// still possibly holding a by-level conditional (callers resolve it with
// pkg/schema.ResolveKeyedBy once the task's level is known).
type WorkerAlias struct {
	Provisioner    value.Value
	Implementation string
	OS             string
	WorkerType     value.Value
}

// WorkerAliases returns the configured alias->WorkerAlias mapping.
func (g *GraphConfig) WorkerAliases() map[string]WorkerAlias {
	workers, _ := g.values.Get("workers")
	aliases, _ := workers.Get("aliases")
	m, _ := aliases.AsMap()
	out := make(map[string]WorkerAlias, len(m))
	for name, a := range m {
		am, _ := a.AsMap()
		wa := WorkerAlias{Provisioner: am["provisioner"], WorkerType: am["worker-type"]}
		wa.Implementation, _ = am["implementation"].AsString()
		wa.OS, _ = am["os"].AsString()
		out[name] = wa
	}
	return out
}

// IndexPathRegexes returns the configured patterns the make-index-task
// morph uses to fold index paths into wildcard index scopes.
func (g *GraphConfig) IndexPathRegexes() []string {
	v, ok := g.Get("taskgraph.index-path-regexes")
	if !ok {
		return nil
	}
	list, _ := v.AsList()
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// TaskPriority is the configured default task priority, which may still be a
// by-project/by-level conditional.
func (g *GraphConfig) TaskPriority() value.Value {
	v, _ := g.Get("task-priority")
	return v
}

// TreeherderGroupNames maps a treeherder group symbol (e.g. "B") to its
// human-readable group name (e.g. "Build"), required for every non-"?"
// group symbol a task's treeherder stanza uses.
func (g *GraphConfig) TreeherderGroupNames() map[string]string {
	v, ok := g.Get("treeherder.group-names")
	if !ok {
		return nil
	}
	m, _ := v.AsMap()
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.AsString(); ok {
			out[k] = s
		}
	}
	return out
}

// String renders the config for debug logging.
func (g *GraphConfig) String() string {
	return "GraphConfig(" + g.TrustDomain() + ", level=" + strconv.Itoa(g.GetInt("level", 0)) + ")"
}
